package sequence

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	roundTripsName   = "grove_sequence_round_trips_total"
	casConflictsName = "grove_sequence_cas_conflicts_total"
	prefetchName     = "grove_sequence_prefetch_size"
)

type metrics struct {
	roundTrips   *prometheus.CounterVec
	casConflicts *prometheus.CounterVec
	prefetch     *prometheus.GaugeVec
}

// newMetrics builds the allocator's collectors and registers them on reg.
// Allocators sharing a registerer share collectors. A nil reg keeps them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		roundTrips: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grove",
				Subsystem: "sequence",
				Name:      "round_trips_total",
				Help:      "Range claims issued against durable storage.",
			}, []string{"sequence"})),

		casConflicts: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grove",
				Subsystem: "sequence",
				Name:      "cas_conflicts_total",
				Help:      "Range claims that lost a compare-and-swap race.",
			}, []string{"sequence"})),

		prefetch: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "grove",
				Subsystem: "sequence",
				Name:      "prefetch_size",
				Help:      "Size of the most recently claimed range.",
			}, []string{"sequence"})),
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
		panic(fmt.Sprintf("registering sequence metrics: %v", err))
	}
	return c
}

// Stats is what the allocator metrics recorded for one sequence.
type Stats struct {
	RoundTrips   int64
	CASConflicts int64
	Prefetch     int64
}

// GatherStats reads one sequence's allocator metrics from g. Sequences the
// allocator never claimed from report zeros.
func GatherStats(g prometheus.Gatherer, name string) (Stats, error) {
	families, err := g.Gather()
	if err != nil {
		return Stats{}, fmt.Errorf("gathering sequence metrics: %w", err)
	}

	var s Stats
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if !hasLabel(m.GetLabel(), "sequence", name) {
				continue
			}
			switch mf.GetName() {
			case roundTripsName:
				s.RoundTrips = int64(m.GetCounter().GetValue())
			case casConflictsName:
				s.CASConflicts = int64(m.GetCounter().GetValue())
			case prefetchName:
				s.Prefetch = int64(m.GetGauge().GetValue())
			}
		}
	}
	return s, nil
}

func hasLabel(labels []*dto.LabelPair, key, value string) bool {
	for _, l := range labels {
		if l.GetName() == key && l.GetValue() == value {
			return true
		}
	}
	return false
}
