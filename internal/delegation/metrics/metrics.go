package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for delegated creation on both sides.
type Metrics struct {
	// Requester outcomes: ok, rejected, timeout, cancelled, error
	Requests *prometheus.CounterVec

	// Time from publish to result
	Wait prometheus.Histogram

	// Requests waiting for a result
	Pending prometheus.Gauge

	// Peer outcomes: created, empty, failed
	PeerRequests *prometheus.CounterVec
}

// New registers delegation metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetport_delegation_requests_total",
			Help: "Delegated creation requests by outcome",
		}, []string{"outcome"}),

		Wait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sheetport_delegation_wait_seconds",
			Help:    "Time a requester waited for the privileged peer",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),

		Pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "sheetport_delegation_pending",
			Help: "Delegated creation requests awaiting a result",
		}),

		PeerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetport_delegation_peer_requests_total",
			Help: "Creation requests served by the privileged peer by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementRequest(outcome string) {
	if m != nil {
		m.Requests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveWait(d time.Duration) {
	if m != nil {
		m.Wait.Observe(d.Seconds())
	}
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.Pending.Set(float64(n))
	}
}

func (m *Metrics) IncrementPeerRequest(outcome string) {
	if m != nil {
		m.PeerRequests.WithLabelValues(outcome).Inc()
	}
}
