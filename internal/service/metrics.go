package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medsched/confirmlink/internal/domain"
)

// Metrics exposes counters for link resolution and status transitions.
type Metrics struct {
	resolutions *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "confirmlink",
			Subsystem: "links",
			Name:      "resolutions_total",
			Help:      "Link resolutions by tenant and outcome",
		}, []string{"tenant", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "confirmlink",
			Subsystem: "links",
			Name:      "transitions_total",
			Help:      "Status transition attempts by tenant, target status and result",
		}, []string{"tenant", "status", "result"}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutions, m.transitions)
	return m
}

func (m *Metrics) ObserveResolution(tenant string, outcome domain.LinkOutcome) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(tenant, string(outcome)).Inc()
}

func (m *Metrics) ObserveTransition(tenant string, status domain.Status, result domain.TransitionResult) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(tenant, string(status), string(result)).Inc()
}
