package colcluster

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting training metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prom package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordEvaluation is called after a batch of candidate configurations
	// was costed. count is the number of candidates in the batch.
	RecordEvaluation(count int)

	// RecordIteration is called at the end of a search pass with the best
	// compressed size found so far.
	RecordIteration(iteration int, bestSize uint64)

	// RecordImprovement is called when a candidate is accepted. saved is the
	// number of compressed bytes it saves over the previous best.
	RecordImprovement(saved uint64)

	// RecordTraining is called once per TrainCluster call.
	// trainer is the trainer name, err is nil if successful.
	RecordTraining(trainer string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEvaluation(int)                        {}
func (NoopMetricsCollector) RecordIteration(int, uint64)                 {}
func (NoopMetricsCollector) RecordImprovement(uint64)                    {}
func (NoopMetricsCollector) RecordTraining(string, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Evaluations        atomic.Int64
	EvaluationBatches  atomic.Int64
	Iterations         atomic.Int64
	BestSize           atomic.Uint64
	Improvements       atomic.Int64
	BytesSaved         atomic.Uint64
	TrainingRuns       atomic.Int64
	TrainingErrors     atomic.Int64
	TrainingTotalNanos atomic.Int64
}

// RecordEvaluation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEvaluation(count int) {
	b.EvaluationBatches.Add(1)
	b.Evaluations.Add(int64(count))
}

// RecordIteration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIteration(iteration int, bestSize uint64) {
	b.Iterations.Add(1)
	b.BestSize.Store(bestSize)
}

// RecordImprovement implements MetricsCollector.
func (b *BasicMetricsCollector) RecordImprovement(saved uint64) {
	b.Improvements.Add(1)
	b.BytesSaved.Add(saved)
}

// RecordTraining implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTraining(trainer string, duration time.Duration, err error) {
	b.TrainingRuns.Add(1)
	b.TrainingTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TrainingErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Evaluations:       b.Evaluations.Load(),
		EvaluationBatches: b.EvaluationBatches.Load(),
		Iterations:        b.Iterations.Load(),
		BestSize:          b.BestSize.Load(),
		Improvements:      b.Improvements.Load(),
		BytesSaved:        b.BytesSaved.Load(),
		TrainingRuns:      b.TrainingRuns.Load(),
		TrainingErrors:    b.TrainingErrors.Load(),
		TrainingAvgNanos:  b.getAvgTrainingNanos(),
	}
}

func (b *BasicMetricsCollector) getAvgTrainingNanos() int64 {
	count := b.TrainingRuns.Load()
	if count == 0 {
		return 0
	}
	return b.TrainingTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Evaluations       int64
	EvaluationBatches int64
	Iterations        int64
	BestSize          uint64
	Improvements      int64
	BytesSaved        uint64
	TrainingRuns      int64
	TrainingErrors    int64
	TrainingAvgNanos  int64
}
