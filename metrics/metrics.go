package metrics

// Package metrics counts cleanup outcomes with Prometheus counters so a run
// can export how much test data it removed or left behind.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeCleaned = "cleaned"
	OutcomeFailed  = "failed"
	OutcomeDryRun  = "dry_run"
)

// Source labels.
const (
	SourceTracker = "tracker"
	SourceOrphan  = "orphan"
)

// Metrics holds the cleanup counters. A nil *Metrics records nothing.
type Metrics struct {
	items *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testkeeper",
			Subsystem: "cleanup",
			Name:      "items_total",
			Help:      "Number of test resources processed by cleanup, by source, category and outcome.",
		}, []string{"source", "category", "outcome"}),
	}
	if err := reg.Register(m.items); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe counts one processed item.
func (m *Metrics) Observe(source, category, outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(source, category, outcome).Inc()
}
