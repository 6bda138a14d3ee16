package observability

import (
	"context"
	"fmt"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	NodeVisits         *prometheus.CounterVec
	CapabilityDuration *prometheus.HistogramVec
	CapabilityErrors   *prometheus.CounterVec
	Suspensions        *prometheus.CounterVec
	Finished           *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurai_node_visits_total",
			Help: "Total number of node applications.",
		}, []string{"flow", "node"}),
		CapabilityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insurai_capability_duration_seconds",
			Help:    "Duration of capability calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow", "capability"}),
		CapabilityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurai_capability_errors_total",
			Help: "Capability calls that failed or timed out.",
		}, []string{"flow", "capability"}),
		Suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurai_suspensions_total",
			Help: "Runs that suspended waiting for input.",
		}, []string{"flow", "node"}),
		Finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insurai_sessions_finished_total",
			Help: "Sessions that reached their end.",
		}, []string{"flow", "status"}),
	}
	for _, c := range []prometheus.Collector{m.NodeVisits, m.CapabilityDuration, m.CapabilityErrors, m.Suspensions, m.Finished} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// Hooks records every lifecycle event into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.Flow, e.Node).Inc()
		},
		OnCapabilityReturn: func(_ context.Context, e *domain.CapabilityEvent) {
			m.CapabilityDuration.WithLabelValues(e.Flow, e.Capability).Observe(e.Duration.Seconds())
			if e.IsError {
				m.CapabilityErrors.WithLabelValues(e.Flow, e.Capability).Inc()
			}
		},
		OnSuspend: func(_ context.Context, e *domain.RunEvent) {
			m.Suspensions.WithLabelValues(e.Flow, e.Node).Inc()
		},
		OnFinish: func(_ context.Context, e *domain.RunEvent) {
			m.Finished.WithLabelValues(e.Flow, string(e.Status)).Inc()
		},
	}
}
