package colcluster

import (
	"log/slog"
	"time"

	"github.com/hupe1980/colcluster/trainer"
)

type options struct {
	trainer          trainer.Kind
	trainerSet       bool
	threads          int
	maxTime          time.Duration
	logger           *Logger
	metricsCollector MetricsCollector
	maxCandidates    int
	maxPairPartners  int
	iterations       int
	noClustering     bool
}

func defaultOptions() options {
	return options{
		threads:          -1,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		maxCandidates:    trainer.DefaultMaxCandidates,
		maxPairPartners:  trainer.DefaultMaxPairPartners,
		iterations:       trainer.DefaultIterations,
	}
}

// Option configures TrainCluster.
type Option func(*options)

// WithTrainer selects the training strategy. Without it TrainCluster uses
// trainer.Greedy and logs a notice.
func WithTrainer(kind trainer.Kind) Option {
	return func(o *options) {
		o.trainer = kind
		o.trainerSet = true
	}
}

// WithThreads sets the number of worker goroutines running trial
// compressions. A negative value selects runtime.NumCPU(), the default.
// Zero makes TrainCluster fail with taskpool.ErrZeroWorkers.
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithMaxTime bounds the search. The trainer returns the best config found
// once the budget is exceeded. Zero means no limit.
func WithMaxTime(d time.Duration) Option {
	return func(o *options) {
		o.maxTime = d
	}
}

// WithLogger sets the logger.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel replaces the logger with a text logger to stderr at level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector.
//
// If nil is passed, metrics are discarded.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithGreedyParams tunes the greedy trainer: how many of the most expensive
// columns it considers, how many similar partners each column is paired
// with, and how many passes it makes. Non-positive values keep the default,
// except maxPairPartners which may be 0 to disable pair splits.
func WithGreedyParams(maxCandidates, maxPairPartners, iterations int) Option {
	return func(o *options) {
		if maxCandidates > 0 {
			o.maxCandidates = maxCandidates
		}
		if maxPairPartners >= 0 {
			o.maxPairPartners = maxPairPartners
		}
		if iterations > 0 {
			o.iterations = iterations
		}
	}
}

// WithNoClustering skips training and returns the compressor's current
// clustering graph unchanged.
func WithNoClustering() Option {
	return func(o *options) {
		o.noClustering = true
	}
}
