package trainer

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/engine"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/taskpool"
)

// Filter selects the columns of a sample that take part in a trial
// compression. A nil Filter selects every tagged stream.
type Filter func(stream.ColumnInfo) bool

// CompressionUtils is the cost oracle shared by all trainers. It owns the
// samples, the successor and codec lists, and the pool trial compressions
// run on. It is safe for concurrent use.
type CompressionUtils struct {
	c          Compressor
	samples    []stream.MultiInput
	successors []engine.GraphID
	codecs     []engine.NodeID
	pool       *taskpool.Pool
	logger     *slog.Logger

	// widened input mask per successor
	masks   []stream.TypeMask
	perType clustering.CodecsPerType

	failed      atomic.Bool
	evaluations atomic.Int64
}

// CodecsPerType partitions codecs by the stream type they cluster. Codecs
// that cannot cluster (fixed arity or several input types) are skipped, but
// every stream type needs at least one usable codec. It runs no
// compression.
func CodecsPerType(c Compressor, codecs []engine.NodeID) (clustering.CodecsPerType, error) {
	perType := make(clustering.CodecsPerType)
	for i, id := range codecs {
		sig, err := c.NodeSignature(id)
		if err != nil {
			return nil, fmt.Errorf("clustering codec %d: %w", i, err)
		}
		if typ, ok := sig.ClusteringType(); ok {
			perType[typ] = append(perType[typ], i)
		}
	}
	for _, t := range stream.Types {
		if len(perType[t]) == 0 {
			return nil, fmt.Errorf("%w: none for %s", ErrMissingClusteringCodec, t)
		}
	}
	return perType, nil
}

// NewCompressionUtils validates the successor and codec lists against c.
// See CodecsPerType for the codec rules.
func NewCompressionUtils(c Compressor, samples []stream.MultiInput, successors []engine.GraphID,
	codecs []engine.NodeID, pool *taskpool.Pool, logger *slog.Logger) (*CompressionUtils, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	perType, err := CodecsPerType(c, codecs)
	if err != nil {
		return nil, err
	}
	var usable int
	for _, idx := range perType {
		usable += len(idx)
	}
	if usable < len(codecs) {
		logger.Debug("ignoring codecs that cannot cluster", "ignored", len(codecs)-usable)
	}

	masks := make([]stream.TypeMask, len(successors))
	for i, id := range successors {
		m, err := c.InputMask(id)
		if err != nil {
			return nil, fmt.Errorf("successor %d: %w", i, err)
		}
		masks[i] = m.Widen()
	}

	return &CompressionUtils{
		c:          c,
		samples:    samples,
		successors: successors,
		codecs:     codecs,
		pool:       pool,
		logger:     logger,
		masks:      masks,
		perType:    perType,
	}, nil
}

// CodecsPerType returns the usable codec indices for each type.
func (u *CompressionUtils) CodecsPerType() clustering.CodecsPerType { return u.perType }

// Samples returns the samples costs are measured on.
func (u *CompressionUtils) Samples() []stream.MultiInput { return u.samples }

// Evaluations returns the number of trial compressions run so far.
func (u *CompressionUtils) Evaluations() int64 { return u.evaluations.Load() }

// AggregateInputMetadata returns every distinct column of the samples.
func (u *CompressionUtils) AggregateInputMetadata() (*stream.ColumnMetadata, error) {
	return stream.Aggregate(u.samples)
}

// BestClusterInfo tries every successor accepting typ with every codec of
// typ on a single cluster holding tags, and returns the cheapest
// combination. Samples are compressed sequentially on the calling
// goroutine, so it may run inside a pool task.
func (u *CompressionUtils) BestClusterInfo(tags []int32, typ stream.Type, width int, md *stream.ColumnMetadata) (clustering.ClusterInfo, error) {
	if len(tags) == 0 {
		return clustering.ClusterInfo{}, clustering.ErrEmptyTags
	}
	members := clustering.NewTagSet(tags...)
	for _, tag := range tags {
		col := stream.ColumnInfo{Tag: tag, Type: typ, Width: width}
		if !md.Contains(col) {
			return clustering.ClusterInfo{}, &clustering.UnknownTagError{Column: col}
		}
	}
	filter := func(col stream.ColumnInfo) bool {
		return col.Type == typ && col.Width == width && members.Contains(col.Tag)
	}

	best := clustering.ClusterInfo{Cost: clustering.Failed()}
	for i, mask := range u.masks {
		if !mask.Accepts(typ) {
			continue
		}
		for _, codec := range u.perType[typ] {
			cfg := clustering.SingleCluster(tags, typ, width, i, codec).Build()

			var cost clustering.SizeTimePair
			for _, sample := range u.samples {
				cost = cost.Add(u.CompressSample(cfg, filter, sample))
			}
			if cost.Less(best.Cost) {
				best = clustering.ClusterInfo{SuccessorIdx: i, ClusteringCodecIdx: codec, Cost: cost}
			}
		}
	}
	return best, nil
}

// CompressSample trial-compresses the streams of sample selected by filter
// under cfg. The config is serialized and compiled from its encoded form,
// as a registered graph would be. Nothing selected costs nothing. A config
// that fails to encode, compile or compress costs clustering.Failed().
func (u *CompressionUtils) CompressSample(cfg *clustering.Config, filter Filter, sample stream.MultiInput) clustering.SizeTimePair {
	u.evaluations.Add(1)

	streams := sample.Select(filter)
	if len(streams) == 0 {
		return clustering.SizeTimePair{}
	}
	params, err := u.c.EncodeParams(cfg)
	if err != nil {
		return u.fail(err)
	}
	r, err := u.c.CompileParams(params, u.successors, u.codecs)
	if err != nil {
		return u.fail(err)
	}

	start := time.Now()
	out, err := r.Compress(streams)
	if err != nil {
		return u.fail(err)
	}
	return clustering.SizeTimePair{CompressedSize: uint64(len(out)), Elapsed: time.Since(start)}
}

func (u *CompressionUtils) fail(err error) clustering.SizeTimePair {
	if u.failed.CompareAndSwap(false, true) {
		u.logger.Error("trial compression failed, further failures are not reported", "error", err)
	}
	return clustering.Failed()
}

// TryCompress costs cfg over every sample, one pool task per sample. The
// returned future sums the per-sample costs.
func (u *CompressionUtils) TryCompress(cfg *clustering.Config, filter Filter) *taskpool.Future[clustering.SizeTimePair] {
	futures := make([]*taskpool.Future[clustering.SizeTimePair], len(u.samples))
	for i, sample := range u.samples {
		futures[i] = taskpool.Run(u.pool, func() clustering.SizeTimePair {
			return u.CompressSample(cfg, filter, sample)
		})
	}
	return taskpool.Join(futures, clustering.SizeTimePair{}, clustering.SizeTimePair.Add)
}
