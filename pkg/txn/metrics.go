package txn

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	commits        *prometheus.CounterVec
	commitDuration prometheus.Histogram
}

// newMetrics builds the coordinator's collectors and registers them on reg.
// Coordinators sharing a registerer share collectors. A nil reg keeps them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		commits: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grove",
				Subsystem: "txn",
				Name:      "commits_total",
				Help:      "Commits that reached a terminal state, by outcome.",
			}, []string{"outcome"})),

		commitDuration: register(reg, prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "grove",
				Subsystem: "txn",
				Name:      "commit_duration_seconds",
				Help:      "Time from commit start to a successful commit.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var dup prometheus.AlreadyRegisteredError
		if errors.As(err, &dup) {
			if existing, ok := dup.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Sprintf("registering txn metrics: %v", err))
	}
	return c
}
