package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a rate limit check.
const (
	OutcomeAllowed = "allowed"
	OutcomeBlocked = "blocked"
	OutcomeError   = "error"
)

type Metrics struct {
	Checks *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Checks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sheetport_ratelimit_checks_total",
			Help: "Rate limit checks by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementCheck(outcome string) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(outcome).Inc()
}
