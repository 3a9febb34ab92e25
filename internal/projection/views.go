// Package projection derives the input of every rendering collaborator
// (map, slider, bar chart, trend chart, tables) from a dataset and a filter
// state. All projections are pure and may run concurrently.
package projection

import (
	"time"

	"tradelens/internal/filter"
	"tradelens/internal/metrics"
	"tradelens/internal/model"
	"tradelens/internal/tradeindex"
)

type YearDomain struct {
	Min     int   `json:"min"`
	Max     int   `json:"max"`
	Step    int   `json:"step"`
	Default int   `json:"default"`
	Years   []int `json:"years"`
}

// Timeline is the slider domain: every tariff or trade year. Its default is
// the year of the initial filter state, so the slider and the first render
// agree.
func Timeline(ds model.Dataset) YearDomain {
	years := ds.Years()
	if len(years) == 0 {
		return YearDomain{Step: 1, Years: []int{}}
	}
	return YearDomain{
		Min:     years[0],
		Max:     years[len(years)-1],
		Step:    1,
		Default: filter.Default(ds).Year,
		Years:   years,
	}
}

type StudyInfo struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Countries []string          `json:"countries"`
	Colors    map[string]string `json:"colors"`
}

type Views struct {
	Study        StudyInfo    `json:"study"`
	Filter       filter.State `json:"filter"`
	BaselineYear int          `json:"baseline_year,omitempty"`
	Timeline     YearDomain   `json:"timeline"`
	Map          MapView      `json:"map"`
	Bar          BarChart     `json:"bar"`
	Trend        TrendChart   `json:"trend"`
	Table        TableView    `json:"table"`
	Macro        TableView    `json:"macro"`
	Insights     []string     `json:"insights"`
	Products     []string     `json:"products"`
	Countries    []string     `json:"countries"`
}

// Render computes every view for one filter state.
func Render(ds model.Dataset, idx *tradeindex.Index, baselineYear int, s filter.State) Views {
	views := Views{
		Study: StudyInfo{
			ID:        ds.Study.ID,
			Name:      ds.Study.Name,
			Countries: ds.Study.Countries,
			Colors:    ds.Study.CountryColors,
		},
		Filter:       s,
		BaselineYear: baselineYear,
		Insights:     ds.Study.Insights,
		Products:     ds.Products(),
		Countries:    ds.Countries(),
	}
	if views.Insights == nil {
		views.Insights = []string{}
	}

	timed("timeline", func() { views.Timeline = Timeline(ds) })
	timed("map", func() { views.Map = Map(ds, s.Year) })
	timed("bar", func() { views.Bar = Bar(ds, s) })
	timed("trend", func() { views.Trend = Trend(ds, s) })
	timed("table", func() { views.Table = Table(ds, idx, baselineYear, s) })
	timed("macro", func() { views.Macro = Macro(ds, s.Year) })
	return views
}

func timed(view string, fn func()) {
	start := time.Now()
	fn()
	metrics.ProjectionDurationSeconds.WithLabelValues(view).Observe(time.Since(start).Seconds())
}
