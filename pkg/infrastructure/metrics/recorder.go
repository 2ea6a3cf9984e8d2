// Package metrics exposes allocation counters and timings to Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cidery"

// Recorder holds the allocation collectors
type Recorder struct {
	runs            *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	batchesCreated  prometheus.Counter
	costDivergence  prometheus.Counter
	publishFailures prometheus.Counter
}

// NewRecorder creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which suits tests that only read values back.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "runs_total",
			Help:      "Press-run allocations by outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "duration_seconds",
			Help:      "Wall time of press-run allocations, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		batchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_created_total",
			Help:      "Batches committed by press-run allocations.",
		}),
		costDivergence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocation",
			Name:      "cost_divergence_total",
			Help:      "Batches whose material cost differs from the press run's purchase cost total.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "publish_failures_total",
			Help:      "Audit events that could not be published.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{r.runs, r.duration, r.batchesCreated, r.costDivergence, r.publishFailures} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register allocation metrics: %w", err)
			}
		}
	}
	return r, nil
}

// ObserveRun records one allocation outcome
func (r *Recorder) ObserveRun(result string, elapsed time.Duration) {
	r.runs.WithLabelValues(result).Inc()
	r.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// BatchesCreated adds committed batches
func (r *Recorder) BatchesCreated(n int) {
	r.batchesCreated.Add(float64(n))
}

// CostDivergence counts one diverging batch
func (r *Recorder) CostDivergence() {
	r.costDivergence.Inc()
}

// PublishFailure counts one failed audit publish
func (r *Recorder) PublishFailure() {
	r.publishFailures.Inc()
}

// Runs exposes the outcome counter for inspection
func (r *Recorder) Runs() *prometheus.CounterVec { return r.runs }

// Batches exposes the created-batches counter for inspection
func (r *Recorder) Batches() prometheus.Counter { return r.batchesCreated }

// Divergences exposes the cost divergence counter for inspection
func (r *Recorder) Divergences() prometheus.Counter { return r.costDivergence }

// PublishFailures exposes the publish failure counter for inspection
func (r *Recorder) PublishFailures() prometheus.Counter { return r.publishFailures }
