// Package session holds the dashboard state of one loaded case study. A
// Session is a value: event handlers return a new Session and never modify
// the one they were given. A new case-study load replaces the session.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradelens/internal/dataset"
	"tradelens/internal/delta"
	"tradelens/internal/filter"
	"tradelens/internal/model"
	"tradelens/internal/projection"
	"tradelens/internal/tradeindex"
)

var ErrUnknownEvent = errors.New("session: unknown event")

type Session struct {
	ID           uuid.UUID
	Dataset      model.Dataset
	Index        *tradeindex.Index
	BaselineYear int
	Filter       filter.State
	LoadedAt     time.Time
}

// Load reads the study's tables and builds a session with the study's
// default filter.
func Load(ctx context.Context, study model.CaseStudy, reader dataset.Reader) Session {
	return New(dataset.Load(ctx, study, reader))
}

// LoadWithReport is Load plus the list of tables that degraded to empty.
func LoadWithReport(ctx context.Context, study model.CaseStudy, reader dataset.Reader) (Session, dataset.Report) {
	ds, report := dataset.LoadWithReport(ctx, study, reader)
	return New(ds), report
}

// New indexes an already loaded dataset.
func New(ds model.Dataset) Session {
	baseline, _ := delta.BaselineYear(ds.Trade)
	return Session{
		ID:           uuid.New(),
		Dataset:      ds,
		Index:        tradeindex.Build(ds.Trade),
		BaselineYear: baseline,
		Filter:       filter.Default(ds),
		LoadedAt:     time.Now().UTC(),
	}
}

func (s Session) Study() model.CaseStudy {
	return s.Dataset.Study
}

func (s Session) Render() projection.Views {
	return projection.Render(s.Dataset, s.Index, s.BaselineYear, s.Filter)
}

// WithFilter returns a copy of s using the normalized filter state.
func (s Session) WithFilter(state filter.State) Session {
	s.Filter = filter.Normalize(state, s.Dataset)
	return s
}

type Event interface {
	Kind() string
	apply(s Session) Session
}

type YearSelected struct {
	Year int
}

func (YearSelected) Kind() string { return "year" }

func (e YearSelected) apply(s Session) Session {
	state := s.Filter
	state.Year = e.Year
	return s.WithFilter(state)
}

type CountrySelected struct {
	Country string
}

func (CountrySelected) Kind() string { return "country" }

func (e CountrySelected) apply(s Session) Session {
	state := s.Filter
	state.Country = e.Country
	return s.WithFilter(state)
}

type ProductSelected struct {
	Product string
}

func (ProductSelected) Kind() string { return "product" }

func (e ProductSelected) apply(s Session) Session {
	state := s.Filter
	state.Product = e.Product
	return s.WithFilter(state)
}

// Apply is the single entry point for user interaction.
func Apply(e Event, s Session) Session {
	return e.apply(s)
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type    string `json:"type" binding:"required"`
	Year    int    `json:"year"`
	Country string `json:"country"`
	Product string `json:"product"`
}

func (e Envelope) Event() (Event, error) {
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "year":
		return YearSelected{Year: e.Year}, nil
	case "country":
		return CountrySelected{Country: e.Country}, nil
	case "product":
		return ProductSelected{Product: e.Product}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
}
