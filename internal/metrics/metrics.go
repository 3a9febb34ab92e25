package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// DatasetLoadsTotal counts case-study loads by how many tables came back.
	DatasetLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradelens",
		Subsystem: "dataset",
		Name:      "loads_total",
		Help:      "Case-study dataset loads, labeled by result (complete, partial, empty).",
	}, []string{"result"})

	// TableLoadFailuresTotal counts source tables that degraded to empty.
	TableLoadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradelens",
		Subsystem: "dataset",
		Name:      "table_load_failures_total",
		Help:      "Source tables that could not be read and were replaced by an empty table.",
	}, []string{"table"})

	ProjectionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tradelens",
		Subsystem: "projection",
		Name:      "duration_seconds",
		Help:      "Time to compute one view projection.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"view"})

	// RendersTotal counts debounced re-renders by whether they ran or were superseded.
	RendersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradelens",
		Subsystem: "session",
		Name:      "renders_total",
		Help:      "Session re-render triggers, labeled by outcome (rendered, superseded).",
	}, []string{"outcome"})
)

// Register registers tradelens metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			DatasetLoadsTotal,
			TableLoadFailuresTotal,
			ProjectionDurationSeconds,
			RendersTotal,
		)
	})
}
