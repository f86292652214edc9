package trainer

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/taskpool"
)

type greedyTrainer struct {
	base
}

// Train starts from one cluster per (type, width) pair and improves it by
// splitting the most expensive columns out, pairing them with similar
// columns, or moving them into other clusters.
func (t *greedyTrainer) Train(ctx context.Context, in Input) (*clustering.Builder, error) {
	start := time.Now()

	u, md, err := t.prepare(in)
	if err != nil {
		return nil, err
	}
	top, err := t.topColumns(u, md)
	if err != nil {
		return nil, err
	}
	best, err := clustering.StartingConfig(md, u, in.TypeDefaults, u.CodecsPerType())
	if err != nil {
		return nil, err
	}
	similar, err := t.similarColumns(u, md, best, top)
	if err != nil {
		return nil, err
	}

	bestCost, err := u.TryCompress(best.Build(), nil).Get()
	if err != nil {
		return nil, err
	}

	for iter := range t.opts.iterations {
		t.opts.logger.Debug("starting iteration", "iteration", iter, "cost", bestCost.CompressedSize)
		improvedInIteration := false

		for i, col := range top {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if t.expired(start) {
				return best, nil
			}
			t.opts.logger.Debug("trying column", "column", col, "progress", i+1, "columns", len(top))

			candidates := t.candidates(u, md, best, col, similar[col])
			costs, err := t.evaluate(u, candidates)
			if err != nil {
				return nil, err
			}

			var improved bool
			best, bestCost, improved = t.accept(best, bestCost, candidates, costs)
			if improved {
				improvedInIteration = true
			} else {
				t.opts.logger.Debug("no improvement", "column", col, "candidates", len(candidates))
			}
		}

		t.opts.observer.Iteration(iter, bestCost)
		if !improvedInIteration {
			break
		}
	}

	t.opts.logger.Debug("final config found", "cost", bestCost.CompressedSize)
	return best, nil
}

// candidates lists the moves tried for col, in evaluation order: a solo
// split, a pair split with each similar column, then a move into every
// compatible cluster. Moves that cannot be built are skipped.
func (t *greedyTrainer) candidates(u *CompressionUtils, md *stream.ColumnMetadata,
	best *clustering.Builder, col stream.ColumnInfo, partners []stream.ColumnInfo) []*clustering.Builder {
	var out []*clustering.Builder

	if c, err := best.SoloSplit(md, u, col); err != nil {
		t.opts.logger.Debug("skipping solo split", "column", col, "error", err)
	} else {
		out = append(out, c)
	}

	for _, p := range partners {
		c, err := best.PairSplit(md, u, col, p)
		if err != nil {
			t.opts.logger.Debug("skipping pair split", "column", col, "partner", p, "error", err)
			continue
		}
		out = append(out, c)
	}

	for idx := range best.NumClusters() {
		if !best.IsCompatible(col.Type, col.Width, idx) {
			continue
		}
		c, err := best.AddToCluster(col, idx)
		if err != nil {
			t.opts.logger.Debug("skipping move", "column", col, "cluster", idx, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

type rankedColumn struct {
	col  stream.ColumnInfo
	cost clustering.SizeTimePair
}

// topColumns ranks columns by their cost when stored alone, most expensive
// first, and keeps the first maxCandidates.
func (t *greedyTrainer) topColumns(u *CompressionUtils, md *stream.ColumnMetadata) ([]stream.ColumnInfo, error) {
	store := storeConfig(u.CodecsPerType())

	cols := md.Columns()
	futures := make([]*taskpool.Future[clustering.SizeTimePair], len(cols))
	for i, col := range cols {
		futures[i] = u.TryCompress(store, func(c stream.ColumnInfo) bool { return c == col })
	}
	costs, err := taskpool.GetAll(futures)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedColumn, len(cols))
	for i, col := range cols {
		ranked[i] = rankedColumn{col: col, cost: costs[i]}
	}
	slices.SortStableFunc(ranked, func(a, b rankedColumn) int {
		return cmp.Compare(b.cost.CompressedSize, a.cost.CompressedSize)
	})

	top := make([]stream.ColumnInfo, min(t.opts.maxCandidates, len(ranked)))
	for i := range top {
		top[i] = ranked[i].col
	}
	return top, nil
}

// marginalCosts returns, for each column, how much the starting config
// grows when the column is added to the other columns. The result is at
// least 1.
func (t *greedyTrainer) marginalCosts(u *CompressionUtils, starting *clustering.Config, top []stream.ColumnInfo) (map[stream.ColumnInfo]uint64, error) {
	total, err := u.TryCompress(starting, nil).Get()
	if err != nil {
		return nil, err
	}

	futures := make([]*taskpool.Future[clustering.SizeTimePair], len(top))
	for i, col := range top {
		futures[i] = u.TryCompress(starting, func(c stream.ColumnInfo) bool { return c != col })
	}
	without, err := taskpool.GetAll(futures)
	if err != nil {
		return nil, err
	}

	marginal := make(map[stream.ColumnInfo]uint64, len(top))
	for i, col := range top {
		diff := int64(total.CompressedSize) - int64(without[i].CompressedSize)
		marginal[col] = uint64(max(1, diff))
	}
	return marginal, nil
}

type pairScore struct {
	partner stream.ColumnInfo
	score   float64
}

// similarColumns finds, for each top column, up to maxPairPartners columns
// of the same type and width that compress better together than their
// marginal costs suggest. A pair's score is its best cluster cost divided by
// the sum of both marginal costs; only scores below 1 are kept.
func (t *greedyTrainer) similarColumns(u *CompressionUtils, md *stream.ColumnMetadata,
	starting *clustering.Builder, top []stream.ColumnInfo) (map[stream.ColumnInfo][]stream.ColumnInfo, error) {
	marginal, err := t.marginalCosts(u, starting.Build(), top)
	if err != nil {
		return nil, err
	}

	// The pair cost is symmetric, so each unordered pair is costed once.
	type pairKey struct{ a, b stream.ColumnInfo }
	key := func(c1, c2 stream.ColumnInfo) pairKey {
		if c1.Compare(c2) > 0 {
			c1, c2 = c2, c1
		}
		return pairKey{c1, c2}
	}
	pairCosts := make(map[pairKey]*taskpool.Future[clustering.ClusterInfo])
	for _, c1 := range top {
		for _, c2 := range top {
			if c1 == c2 || !c1.SameKind(c2) {
				continue
			}
			k := key(c1, c2)
			if _, ok := pairCosts[k]; ok {
				continue
			}
			pairCosts[k] = taskpool.RunErr(t.pool, func() (clustering.ClusterInfo, error) {
				return u.BestClusterInfo([]int32{k.a.Tag, k.b.Tag}, k.a.Type, k.a.Width, md)
			})
		}
	}

	similar := make(map[stream.ColumnInfo][]stream.ColumnInfo)
	for _, c1 := range top {
		var scores []pairScore
		for _, c2 := range top {
			if c1 == c2 || !c1.SameKind(c2) {
				continue
			}
			info, err := pairCosts[key(c1, c2)].Get()
			if err != nil {
				return nil, err
			}
			score := float64(info.Cost.CompressedSize) / float64(marginal[c1]+marginal[c2])
			scores = append(scores, pairScore{partner: c2, score: score})
		}
		slices.SortStableFunc(scores, func(a, b pairScore) int {
			return cmp.Or(cmp.Compare(a.score, b.score), a.partner.Compare(b.partner))
		})

		for _, s := range scores[:min(t.opts.maxPairPartners, len(scores))] {
			if s.score < 1 {
				similar[c1] = append(similar[c1], s.partner)
			}
		}
	}
	return similar, nil
}

// storeConfig is clustering.StoreConfig with each type default using the
// first codec of its type in the caller's codec list.
func storeConfig(perType clustering.CodecsPerType) *clustering.Config {
	defaults := clustering.StoreConfig().TypeDefaults()
	out := make([]clustering.TypeSuccessor, len(defaults))
	for i, d := range defaults {
		if codec, err := perType.First(d.Type); err == nil {
			d.ClusteringCodecIdx = codec
		}
		out[i] = d
	}
	return clustering.NewBuilder(nil, out).Build()
}
