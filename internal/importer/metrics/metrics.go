package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the importer.
type Metrics struct {
	// Import units by outcome (created, failed) and creation path (direct, delegated, none)
	Imports *prometheus.CounterVec

	// Parse failures for whole payloads
	ParseFailures prometheus.Counter

	// Duration of one ImportFromText call
	ImportLatency prometheus.Histogram
}

// New registers importer metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetport_imports_total",
			Help: "Imported characters by outcome and creation path",
		}, []string{"outcome", "path"}),

		ParseFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "sheetport_import_parse_failures_total",
			Help: "Import payloads rejected as invalid JSON",
		}),

		ImportLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheetport_import_duration_seconds",
			Help:    "Duration of a full import call including delegation",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		}),
	}
}

func (m *Metrics) IncrementImport(outcome, path string) {
	if m != nil {
		m.Imports.WithLabelValues(outcome, path).Inc()
	}
}

func (m *Metrics) IncrementParseFailure() {
	if m != nil {
		m.ParseFailures.Inc()
	}
}

func (m *Metrics) ObserveImportLatency(d time.Duration) {
	if m != nil {
		m.ImportLatency.Observe(d.Seconds())
	}
}
