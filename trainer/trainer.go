package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/engine"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/taskpool"
)

// Input is everything a trainer needs to search for a configuration.
type Input struct {
	Compressor       Compressor
	Samples          []stream.MultiInput
	Successors       []engine.GraphID
	ClusteringCodecs []engine.NodeID
	// TypeDefaults maps (type, width) pairs to a successor index for the
	// defaults of the produced config.
	TypeDefaults clustering.TypeDefaults
}

// Trainer produces a clustering configuration for the input samples.
type Trainer interface {
	Train(ctx context.Context, in Input) (*clustering.Builder, error)
}

// Kind names a training strategy.
type Kind int

const (
	// FullSplit keeps one cluster per column.
	FullSplit Kind = iota
	// Greedy splits and moves the most expensive columns.
	Greedy
	// BottomUp merges columns into the clusters built so far.
	BottomUp
)

func (k Kind) String() string {
	switch k {
	case FullSplit:
		return "full-split"
	case Greedy:
		return "greedy"
	case BottomUp:
		return "bottom-up"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the name returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{FullSplit, Greedy, BottomUp} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < FullSplit || k > BottomUp {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Observer receives progress events from a running trainer. Methods are
// called from the goroutine running Train.
type Observer interface {
	// Evaluated reports a batch of n candidate configurations that were
	// costed.
	Evaluated(n int)
	// Iteration reports the end of a search pass.
	Iteration(n int, best clustering.SizeTimePair)
	// Improved reports an accepted candidate.
	Improved(before, after clustering.SizeTimePair)
	// EarlyStop reports that the time budget ran out.
	EarlyStop(elapsed time.Duration)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) Evaluated(int)                                             {}
func (NoopObserver) Iteration(int, clustering.SizeTimePair)                    {}
func (NoopObserver) Improved(clustering.SizeTimePair, clustering.SizeTimePair) {}
func (NoopObserver) EarlyStop(time.Duration)                                   {}

// Default search parameters.
const (
	DefaultMaxCandidates   = 500
	DefaultMaxPairPartners = 2
	DefaultIterations      = 2
)

type options struct {
	logger          *slog.Logger
	observer        Observer
	maxTime         time.Duration
	maxCandidates   int
	maxPairPartners int
	iterations      int
}

// Option configures a trainer.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver sets the progress observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithMaxTime bounds the search. The budget is checked once per candidate
// column, so a run may overshoot it by one round of evaluations. Zero means
// no limit.
func WithMaxTime(d time.Duration) Option {
	return func(o *options) { o.maxTime = d }
}

// WithMaxCandidates sets how many of the most expensive columns the greedy
// trainer considers.
func WithMaxCandidates(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxCandidates = n
		}
	}
}

// WithMaxPairPartners sets how many similar columns the greedy trainer
// pairs each candidate with.
func WithMaxPairPartners(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxPairPartners = n
		}
	}
}

// WithIterations sets the maximum number of greedy passes.
func WithIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.iterations = n
		}
	}
}

// New returns a trainer of the given kind running its trial compressions
// on pool.
func New(kind Kind, pool *taskpool.Pool, opts ...Option) (Trainer, error) {
	o := options{
		logger:          slog.New(slog.DiscardHandler),
		observer:        NoopObserver{},
		maxCandidates:   DefaultMaxCandidates,
		maxPairPartners: DefaultMaxPairPartners,
		iterations:      DefaultIterations,
	}
	for _, opt := range opts {
		opt(&o)
	}

	b := base{pool: pool, opts: o}
	switch kind {
	case FullSplit:
		return &fullSplitTrainer{base: b}, nil
	case Greedy:
		return &greedyTrainer{base: b}, nil
	case BottomUp:
		return &bottomUpTrainer{base: b}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}

type base struct {
	pool *taskpool.Pool
	opts options
}

// prepare builds the oracle and the column metadata for in.
func (b *base) prepare(in Input) (*CompressionUtils, *stream.ColumnMetadata, error) {
	u, err := NewCompressionUtils(in.Compressor, in.Samples, in.Successors, in.ClusteringCodecs, b.pool, b.opts.logger)
	if err != nil {
		return nil, nil, err
	}
	md, err := u.AggregateInputMetadata()
	if err != nil {
		return nil, nil, err
	}
	return u, md, nil
}

// expired reports whether the time budget is used up.
func (b *base) expired(start time.Time) bool {
	if b.opts.maxTime <= 0 {
		return false
	}
	elapsed := time.Since(start)
	if elapsed <= b.opts.maxTime {
		return false
	}
	b.opts.logger.Debug("time budget exceeded", "elapsed", elapsed, "max_time", b.opts.maxTime)
	b.opts.observer.EarlyStop(elapsed)
	return true
}

// trainedFullSplit returns the full split with the best successor and codec
// picked for every cluster.
func (b *base) trainedFullSplit(u *CompressionUtils, md *stream.ColumnMetadata, defaults clustering.TypeDefaults) (*clustering.Builder, error) {
	cfg, err := clustering.FullSplit(md, defaults, u.CodecsPerType())
	if err != nil {
		return nil, err
	}

	futures := make([]*taskpool.Future[clustering.ClusterInfo], cfg.NumClusters())
	for i, cl := range cfg.Clusters() {
		tags := cl.Members.Tags()
		typ, width := cl.Type, cl.EltWidth
		futures[i] = taskpool.RunErr(b.pool, func() (clustering.ClusterInfo, error) {
			return u.BestClusterInfo(tags, typ, width, md)
		})
	}
	infos, err := taskpool.GetAll(futures)
	if err != nil {
		return nil, err
	}
	for i, info := range infos {
		if cfg, err = cfg.WithClusterInfo(i, info); err != nil {
			return nil, err
		}
	}
	b.opts.observer.Evaluated(len(infos))
	b.opts.logger.Debug("trained full split", "columns", md.Len())
	return cfg, nil
}

// evaluate costs every candidate in parallel and returns the costs in
// candidate order.
func (b *base) evaluate(u *CompressionUtils, candidates []*clustering.Builder) ([]clustering.SizeTimePair, error) {
	futures := make([]*taskpool.Future[clustering.SizeTimePair], len(candidates))
	for i, c := range candidates {
		futures[i] = u.TryCompress(c.Build(), nil)
	}
	costs, err := taskpool.GetAll(futures)
	if err != nil {
		return nil, err
	}
	b.opts.observer.Evaluated(len(candidates))
	return costs, nil
}

// accept replaces best by the cheapest candidate that is strictly cheaper.
// Ties keep the earlier candidate.
func (b *base) accept(best *clustering.Builder, bestCost clustering.SizeTimePair,
	candidates []*clustering.Builder, costs []clustering.SizeTimePair) (*clustering.Builder, clustering.SizeTimePair, bool) {
	improved := false
	for i, cost := range costs {
		if !cost.Less(bestCost) {
			continue
		}
		b.opts.observer.Improved(bestCost, cost)
		b.opts.logger.Debug("new best config", "cost", cost.CompressedSize, "previous", bestCost.CompressedSize)
		best, bestCost, improved = candidates[i], cost, true
	}
	return best, bestCost, improved
}
