package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// PrometheusSink exports failure and recovery counters partitioned by
// stage, strategy, and class.
type PrometheusSink struct {
	failures   *prometheus.CounterVec
	recoveries *prometheus.CounterVec
	attempts   *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediascribe_job_failures_total",
			Help: "Terminal job failures partitioned by kind, stage, and class.",
		}, []string{"kind", "stage", "class"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediascribe_job_recoveries_total",
			Help: "Stages that succeeded after failed attempts, by kind and stage.",
		}, []string{"kind", "stage"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediascribe_strategy_attempts_total",
			Help: "Strategy attempts partitioned by stage, strategy, and class.",
		}, []string{"stage", "strategy", "class"}),
	}
	for _, collector := range []prometheus.Collector{s.failures, s.recoveries, s.attempts} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register diagnostics collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the counters from one record.
func (s *PrometheusSink) Consume(_ context.Context, rec diag.Record) error {
	if rec.Class == pipeline.ClassRecovered {
		s.recoveries.WithLabelValues(string(rec.Kind), rec.Stage).Inc()
	} else {
		s.failures.WithLabelValues(string(rec.Kind), rec.Stage, string(rec.Class)).Inc()
	}
	for _, a := range rec.Attempts {
		s.attempts.WithLabelValues(rec.Stage, a.Strategy, string(a.Class)).Inc()
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
