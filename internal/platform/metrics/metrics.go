// Package metrics exposes Prometheus instrumentation for the engine API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine tracks draw activity and validation outcomes.
type Engine struct {
	Draws              *prometheus.CounterVec // completed draws, partitioned by kind
	ValidationFailures *prometheus.CounterVec // rejected calls, partitioned by error code
	WeakPayloads       prometheus.Counter     // calls flagged for thin caller entropy
	BatchSize          prometheus.Histogram   // requested batch sizes
}

// Draw kinds used as the "kind" label value.
const (
	DrawKindSingle = "single"
	DrawKindRange  = "range"
	DrawKindBatch  = "batch"
)

// NewEngine creates and registers the engine metrics on reg.
func NewEngine(reg prometheus.Registerer) *Engine {
	factory := promauto.With(reg)
	return &Engine{
		Draws: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entropy_engine_draws_total",
			Help: "completed draws; partitioned by draw kind",
		}, []string{"kind"}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entropy_engine_validation_failures_total",
			Help: "rejected calls; partitioned by error code",
		}, []string{"code"}),
		WeakPayloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "entropy_engine_weak_payloads_total",
			Help: "successful calls whose payload was under the advisory entropy threshold",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "entropy_engine_batch_size",
			Help:    "requested batch sizes",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}
