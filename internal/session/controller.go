package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apex/log"

	"tradelens/internal/dataset"
	"tradelens/internal/debounce"
	"tradelens/internal/metrics"
	"tradelens/internal/model"
	"tradelens/internal/projection"
)

var ErrNoSession = errors.New("session: no case study loaded")

// Controller owns the current session and its last rendered views. Filter
// changes apply at once; the re-render they cause is debounced so that only
// the last change of a burst is rendered.
type Controller struct {
	debouncer *debounce.Debouncer
	onRender  func(projection.Views)

	mu      sync.RWMutex
	current *Session
	views   projection.Views
}

type Option func(*Controller)

// WithRenderHook registers fn to receive every rendered snapshot.
func WithRenderHook(fn func(projection.Views)) Option {
	return func(c *Controller) {
		c.onRender = fn
	}
}

func NewController(delay time.Duration, opts ...Option) *Controller {
	c := &Controller{debouncer: debounce.New(delay)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Load(ctx context.Context, study model.CaseStudy, reader dataset.Reader) Session {
	s := Load(ctx, study, reader)
	c.Install(s)
	return s
}

// Install replaces the current session and renders it right away. A render
// still pending for the previous session is discarded.
func (c *Controller) Install(s Session) {
	c.debouncer.Stop()
	views := s.Render()

	c.mu.Lock()
	c.current = &s
	c.views = views
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"session":    s.ID.String(),
		"case_study": s.Study().ID,
	}).Info("session installed")
	c.publish(views)
}

// Dispatch applies e to the current session and schedules a re-render.
func (c *Controller) Dispatch(e Event) (Session, error) {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return Session{}, ErrNoSession
	}
	next := Apply(e, *c.current)
	c.current = &next
	c.mu.Unlock()

	if c.debouncer.Trigger(c.render) {
		metrics.RendersTotal.WithLabelValues("superseded").Inc()
	}
	log.WithFields(log.Fields{
		"session": next.ID.String(),
		"event":   e.Kind(),
		"year":    next.Filter.Year,
		"country": next.Filter.Country,
		"product": next.Filter.Product,
	}).Debug("filter changed")
	return next, nil
}

// Flush renders immediately if a render is pending.
func (c *Controller) Flush() {
	if c.debouncer.Stop() {
		c.render()
	}
}

func (c *Controller) Pending() bool {
	return c.debouncer.Pending()
}

func (c *Controller) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Session{}, false
	}
	return *c.current, true
}

// Views returns the last rendered snapshot. It lags the session's filter
// while a render is pending.
func (c *Controller) Views() (projection.Views, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.views, c.current != nil
}

func (c *Controller) Close() {
	c.debouncer.Stop()
}

func (c *Controller) render() {
	c.mu.RLock()
	if c.current == nil {
		c.mu.RUnlock()
		return
	}
	s := *c.current
	c.mu.RUnlock()

	views := s.Render()

	c.mu.Lock()
	if c.current == nil || c.current.ID != s.ID || c.current.Filter != s.Filter {
		c.mu.Unlock()
		metrics.RendersTotal.WithLabelValues("superseded").Inc()
		return
	}
	c.views = views
	c.mu.Unlock()

	metrics.RendersTotal.WithLabelValues("rendered").Inc()
	c.publish(views)
}

func (c *Controller) publish(views projection.Views) {
	if c.onRender != nil {
		c.onRender(views)
	}
}
