// Package metrics exposes Prometheus instrumentation for the escrow ledger.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/escrowlabs/escrowd/internal/models"
)

// Metrics holds the ledger's Prometheus collectors. It doubles as an
// escrow.EventSink so every transition is counted as it happens.
type Metrics struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	payoutUnits *prometheus.CounterVec
	openCount   prometheus.Gauge
}

// New creates a Metrics with its own registry, so tests do not collide on
// the global default registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escrowd_transitions_total",
			Help: "Successful ledger transitions by operation.",
		}, []string{"op"}),
		payoutUnits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escrowd_payout_units_total",
			Help: "Value released from custody, by leg kind (payout, fee, refund).",
		}, []string{"kind"}),
		openCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "escrowd_projects_open",
			Help: "Projects currently in a non-terminal state.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Emit implements escrow.EventSink.
func (m *Metrics) Emit(_ context.Context, ev models.Event) {
	m.transitions.WithLabelValues(ev.Op).Inc()

	switch {
	case ev.Op == models.OpCreate:
		m.openCount.Inc()
	case ev.ToState.Terminal():
		m.openCount.Dec()
	}

	if ev.Recipient == "" {
		return
	}
	kind := "payout"
	if ev.Op == models.OpCancel {
		kind = "refund"
	}
	m.payoutUnits.WithLabelValues(kind).Add(float64(ev.Payout))
	if ev.Fee > 0 {
		m.payoutUnits.WithLabelValues("fee").Add(float64(ev.Fee))
	}
}
