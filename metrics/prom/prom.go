// Package prom exports training metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/colcluster"
)

// Collector implements colcluster.MetricsCollector with Prometheus metrics.
type Collector struct {
	evaluations  prometheus.Counter
	batches      prometheus.Counter
	iterations   prometheus.Counter
	bestSize     prometheus.Gauge
	improvements prometheus.Counter
	bytesSaved   prometheus.Counter
	runs         *prometheus.HistogramVec
}

var _ colcluster.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg. A nil reg
// registers with the default registry.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colcluster_candidates_evaluated_total",
			Help: "Total candidate configurations costed by trial compression",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colcluster_candidate_batches_total",
			Help: "Total batches of candidates evaluated in parallel",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colcluster_iterations_total",
			Help: "Total search passes completed",
		}),
		bestSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colcluster_best_compressed_bytes",
			Help: "Compressed size of the samples under the best config so far",
		}),
		improvements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colcluster_improvements_total",
			Help: "Total accepted candidates",
		}),
		bytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colcluster_bytes_saved_total",
			Help: "Compressed bytes saved by accepted candidates",
		}),
		runs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "colcluster_training_duration_seconds",
			Help:    "Duration of training runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"trainer", "status"}),
	}

	for _, m := range []prometheus.Collector{
		c.evaluations, c.batches, c.iterations, c.bestSize,
		c.improvements, c.bytesSaved, c.runs,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordEvaluation implements colcluster.MetricsCollector.
func (c *Collector) RecordEvaluation(count int) {
	c.batches.Inc()
	c.evaluations.Add(float64(count))
}

// RecordIteration implements colcluster.MetricsCollector.
func (c *Collector) RecordIteration(iteration int, bestSize uint64) {
	c.iterations.Inc()
	c.bestSize.Set(float64(bestSize))
}

// RecordImprovement implements colcluster.MetricsCollector.
func (c *Collector) RecordImprovement(saved uint64) {
	c.improvements.Inc()
	c.bytesSaved.Add(float64(saved))
}

// RecordTraining implements colcluster.MetricsCollector.
func (c *Collector) RecordTraining(trainer string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.runs.WithLabelValues(trainer, status).Observe(d.Seconds())
}
