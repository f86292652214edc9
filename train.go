package colcluster

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/engine"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/taskpool"
	"github.com/hupe1980/colcluster/trainer"
)

// Compressor is the graph engine TrainCluster trains for. *engine.Compressor
// implements it.
type Compressor interface {
	trainer.Compressor

	StartingGraph() (engine.GraphID, bool)
	BaseGraph(id engine.GraphID) (engine.GraphID, error)
	ClusteringParams(id engine.GraphID) (*clustering.Config, []engine.GraphID, []engine.NodeID, error)
	RegisterClusteringGraph(cfg *clustering.Config, successors []engine.GraphID, codecs []engine.NodeID) (engine.GraphID, error)
	CompressWith(id engine.GraphID, streams []*stream.Stream) ([]byte, error)
}

var _ Compressor = (*engine.Compressor)(nil)

// Result describes a trained clustering graph.
type Result struct {
	// RunID identifies the run in logs.
	RunID uuid.UUID
	// GraphID is the registered clustering graph.
	GraphID engine.GraphID
	// Config is the trained config. Cluster successor indices point into
	// Successors.
	Config     *clustering.Config
	Successors []engine.GraphID
	Codecs     []engine.NodeID
	Trainer    trainer.Kind
	// Cost is the compressed size of the samples with the new graph.
	Cost clustering.SizeTimePair
	// Baseline is the compressed size of the samples with the starting graph
	// before training.
	Baseline clustering.SizeTimePair
	// Candidates counts the configurations evaluated.
	Candidates int64
	// EarlyStopped is set when the time budget ended the search.
	EarlyStopped bool
	Duration     time.Duration
}

// Improvement returns how much the compression ratio improved over the
// baseline, in percent.
func (r *Result) Improvement() float64 {
	if r.Cost.CompressedSize == 0 || r.Baseline.IsFailed() || r.Cost.IsFailed() {
		return 0
	}
	return (float64(r.Baseline.CompressedSize)/float64(r.Cost.CompressedSize) - 1) * 100
}

// TrainCluster trains a clustering config for samples and registers it as a
// new clustering graph with c. The starting graph of c must be the generic
// clustering graph or derived from it. typeDefaults maps (type, width)
// pairs to indices into successors for columns no cluster names.
func TrainCluster(ctx context.Context, c Compressor, samples []stream.MultiInput, successors []engine.GraphID,
	codecs []engine.NodeID, typeDefaults clustering.TypeDefaults, optFns ...Option) (*Result, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	runID := uuid.New()
	log := o.logger.WithRunID(runID)
	start := time.Now()

	starting, ok := c.StartingGraph()
	if !ok {
		return nil, fmt.Errorf("%w: no starting graph selected", ErrNotClusteringGraph)
	}
	base, err := c.BaseGraph(starting)
	if err != nil {
		return nil, err
	}
	if base != engine.GraphClustering {
		return nil, fmt.Errorf("%w: graph %d", ErrNotClusteringGraph, starting)
	}

	if o.noClustering {
		return existingGraph(c, starting, runID)
	}

	if !o.trainerSet {
		log.InfoContext(ctx, "no trainer selected, using the default", "trainer", trainer.Greedy.String())
		o.trainer = trainer.Greedy
	}
	log = log.WithTrainer(o.trainer)

	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if _, err := trainer.CodecsPerType(c, codecs); err != nil {
		o.metricsCollector.RecordTraining(o.trainer.String(), time.Since(start), err)
		log.LogTrainingDone(ctx, nil, err)
		return nil, err
	}

	threads := o.threads
	if threads < 0 {
		threads = runtime.NumCPU()
	}
	pool, err := taskpool.New(threads)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	var total uint64
	for _, s := range samples {
		total += s.Size()
	}
	log.LogTrainingStart(ctx, len(samples), total, threads, o.maxTime)

	obs := &observer{ctx: ctx, log: log, metrics: o.metricsCollector, maxTime: o.maxTime}
	res, err := train(ctx, c, pool, obs, o, samples, successors, codecs, typeDefaults)
	if res != nil {
		res.RunID = runID
		res.Duration = time.Since(start)
	}
	o.metricsCollector.RecordTraining(o.trainer.String(), time.Since(start), err)
	log.LogTrainingDone(ctx, res, err)
	return res, err
}

func train(ctx context.Context, c Compressor, pool *taskpool.Pool, obs *observer, o options,
	samples []stream.MultiInput, successors []engine.GraphID, codecs []engine.NodeID, typeDefaults clustering.TypeDefaults) (*Result, error) {
	starting, _ := c.StartingGraph()

	// measured before any new graph exists
	baseline, err := measure(c, pool, starting, samples)
	if err != nil {
		obs.log.WarnContext(ctx, "cannot measure the starting graph", "error", err)
		baseline = clustering.Failed()
	}

	tr, err := trainer.New(o.trainer, pool,
		trainer.WithLogger(obs.log.Logger),
		trainer.WithObserver(obs),
		trainer.WithMaxTime(o.maxTime),
		trainer.WithMaxCandidates(o.maxCandidates),
		trainer.WithMaxPairPartners(o.maxPairPartners),
		trainer.WithIterations(o.iterations),
	)
	if err != nil {
		return nil, err
	}

	b, err := tr.Train(ctx, trainer.Input{
		Compressor:       c,
		Samples:          samples,
		Successors:       successors,
		ClusteringCodecs: codecs,
		TypeDefaults:     typeDefaults,
	})
	if err != nil {
		return nil, err
	}

	b, unique, err := clustering.MakeSuccessorIndicesUnique(b, successors)
	if err != nil {
		return nil, err
	}
	cfg := b.Build()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id, err := c.RegisterClusteringGraph(cfg, unique, codecs)
	if err != nil {
		return nil, err
	}
	obs.log.LogConfig(ctx, cfg)

	cost, err := measure(c, pool, id, samples)
	if err != nil {
		return nil, fmt.Errorf("measure trained graph: %w", err)
	}

	return &Result{
		GraphID:      id,
		Config:       cfg,
		Successors:   unique,
		Codecs:       codecs,
		Trainer:      o.trainer,
		Cost:         cost,
		Baseline:     baseline,
		Candidates:   obs.candidates.Load(),
		EarlyStopped: obs.earlyStopped.Load(),
	}, nil
}

func existingGraph(c Compressor, id engine.GraphID, runID uuid.UUID) (*Result, error) {
	cfg, successors, codecs, err := c.ClusteringParams(id)
	if err != nil {
		return nil, err
	}
	return &Result{
		RunID:      runID,
		GraphID:    id,
		Config:     cfg,
		Successors: successors,
		Codecs:     codecs,
		Cost:       clustering.Failed(),
		Baseline:   clustering.Failed(),
	}, nil
}

// measure compresses every sample with graph id, one pool task per sample.
func measure(c Compressor, pool *taskpool.Pool, id engine.GraphID, samples []stream.MultiInput) (clustering.SizeTimePair, error) {
	futures := make([]*taskpool.Future[clustering.SizeTimePair], len(samples))
	for i, sample := range samples {
		futures[i] = taskpool.RunErr(pool, func() (clustering.SizeTimePair, error) {
			start := time.Now()
			out, err := c.CompressWith(id, sample)
			if err != nil {
				return clustering.SizeTimePair{}, err
			}
			return clustering.SizeTimePair{CompressedSize: uint64(len(out)), Elapsed: time.Since(start)}, nil
		})
	}
	return taskpool.Join(futures, clustering.SizeTimePair{}, clustering.SizeTimePair.Add).Get()
}

// observer forwards trainer progress to the logger and metrics collector.
type observer struct {
	ctx     context.Context
	log     *Logger
	metrics MetricsCollector
	maxTime time.Duration

	candidates   atomic.Int64
	earlyStopped atomic.Bool
}

func (o *observer) Evaluated(n int) {
	o.candidates.Add(int64(n))
	o.metrics.RecordEvaluation(n)
	o.log.LogCandidateBatch(o.ctx, n)
}

func (o *observer) Iteration(n int, best clustering.SizeTimePair) {
	o.metrics.RecordIteration(n, best.CompressedSize)
	o.log.LogIteration(o.ctx, n, best)
}

func (o *observer) Improved(before, after clustering.SizeTimePair) {
	o.metrics.RecordImprovement(before.CompressedSize - after.CompressedSize)
	o.log.LogImprovement(o.ctx, before, after)
}

func (o *observer) EarlyStop(elapsed time.Duration) {
	o.earlyStopped.Store(true)
	o.log.LogEarlyStop(o.ctx, elapsed, o.maxTime)
}
