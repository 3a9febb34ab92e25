// Package server exposes case-study views and the interactive session over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradelens/internal/casestudy"
	"tradelens/internal/dataset"
	"tradelens/internal/filter"
	"tradelens/internal/projection"
	"tradelens/internal/session"
)

const (
	EndPointHealth       = "/health"
	EndPointMetrics      = "/metrics"
	EndPointCaseStudies  = "/case-studies"
	EndPointStudyViews   = "/case-studies/:id/views"
	EndPointStudyGeoJSON = "/case-studies/:id/map.geojson"
	EndPointSessionLoad  = "/session/load"
	EndPointSessionEvent = "/session/events"
	EndPointSessionViews = "/session/views"
)

// loadTimeout bounds a dataset load that runs detached from its request.
const loadTimeout = 30 * time.Second

var errBadQuery = errors.New("server: bad query")

type Server struct {
	registry   *casestudy.Registry
	reader     dataset.Reader
	controller *session.Controller
	cache      *lru.Cache[string, session.Session]
	router     *gin.Engine
}

// New wires the routes. Loaded case studies are kept in an LRU of
// cacheSize entries so repeated requests skip the table reads.
func New(registry *casestudy.Registry, reader dataset.Reader, controller *session.Controller, cacheSize int) (*Server, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, session.Session](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dataset cache: %w", err)
	}
	s := &Server{
		registry:   registry,
		reader:     reader,
		controller: controller,
		cache:      cache,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	log.WithField("addr", addr).Info("dashboard listening")
	return s.router.Run(addr)
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET(EndPointHealth, s.health)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET(EndPointCaseStudies, s.listCaseStudies)
		api.GET(EndPointStudyViews, s.studyViews)
		api.GET(EndPointStudyGeoJSON, s.studyGeoJSON)
		api.POST(EndPointSessionLoad, s.loadSession)
		api.POST(EndPointSessionEvent, s.dispatchEvent)
		api.GET(EndPointSessionViews, s.sessionViews)
	}
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "tradelens",
	})
}

func (s *Server) listCaseStudies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"case_studies": s.registry.List()})
}

func (s *Server) studyViews(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	state, err := filterFromQuery(c, sess.Filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.WithFilter(state).Render())
}

func (s *Server) studyGeoJSON(c *gin.Context) {
	sess, ok := s.sessionFor(c)
	if !ok {
		return
	}
	state, err := filterFromQuery(c, sess.Filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess = sess.WithFilter(state)
	data, err := projection.GeoJSON(projection.Map(sess.Dataset, sess.Filter.Year))
	if err != nil {
		log.WithError(err).Error("encode geojson")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode geojson"})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}

type loadRequest struct {
	CaseStudy string `json:"case_study" binding:"required"`
}

func (s *Server) loadSession(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := s.cachedSession(c.Request.Context(), req.CaseStudy)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	// A fresh ID per load; the cached copy only saves the table reads.
	fresh := session.New(sess.Dataset)
	s.controller.Install(fresh)

	views, _ := s.controller.Views()
	c.JSON(http.StatusOK, gin.H{
		"session": fresh.ID.String(),
		"views":   views,
	})
}

func (s *Server) dispatchEvent(c *gin.Context) {
	var envelope session.Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event, err := envelope.Event()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, err := s.controller.Dispatch(event)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"session": next.ID.String(),
		"filter":  next.Filter,
		"pending": s.controller.Pending(),
	})
}

func (s *Server) sessionViews(c *gin.Context) {
	if c.Query("flush") == "true" {
		s.controller.Flush()
	}
	views, ok := s.controller.Views()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": session.ErrNoSession.Error()})
		return
	}
	c.Header("X-Render-Pending", strconv.FormatBool(s.controller.Pending()))
	c.JSON(http.StatusOK, views)
}

func (s *Server) sessionFor(c *gin.Context) (session.Session, bool) {
	sess, err := s.cachedSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return session.Session{}, false
	}
	return sess, true
}

func (s *Server) cachedSession(ctx context.Context, id string) (session.Session, error) {
	study, err := s.registry.Lookup(id)
	if err != nil {
		return session.Session{}, err
	}
	if sess, ok := s.cache.Get(study.ID); ok {
		return sess, nil
	}
	// The load outlives the request that triggered it; a client going away
	// must not leave an empty dataset in the cache.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()
	sess, report := session.LoadWithReport(loadCtx, study, s.reader)
	if report.Complete() {
		s.cache.Add(study.ID, sess)
	} else {
		log.WithField("case_study", study.ID).
			WithField("failed", len(report.Failed)).
			Warn("serving degraded case study without caching it")
	}
	return sess, nil
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, casestudy.ErrUnknownStudy) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	log.WithError(err).Error("load case study")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// filterFromQuery overlays year, country and product query parameters on
// base. Missing parameters keep the base value.
func filterFromQuery(c *gin.Context, base filter.State) (filter.State, error) {
	state := base
	if raw, ok := c.GetQuery("year"); ok && strings.TrimSpace(raw) != "" {
		year, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return state, fmt.Errorf("%w: year %q", errBadQuery, raw)
		}
		state.Year = year
	}
	if raw, ok := c.GetQuery("country"); ok {
		state.Country = raw
	}
	if raw, ok := c.GetQuery("product"); ok {
		state.Product = raw
	}
	return state, nil
}
