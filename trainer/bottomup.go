package trainer

import (
	"context"
	"time"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/taskpool"
)

type bottomUpTrainer struct {
	base
}

// Train starts from the trained full split and visits columns in metadata
// order. Each column is tried in every compatible cluster among the first
// nbClusters, with that cluster re-optimized. When no move helps, the
// column keeps its own cluster and nbClusters grows by one.
func (t *bottomUpTrainer) Train(ctx context.Context, in Input) (*clustering.Builder, error) {
	start := time.Now()

	u, md, err := t.prepare(in)
	if err != nil {
		return nil, err
	}
	best, err := t.trainedFullSplit(u, md, in.TypeDefaults)
	if err != nil {
		return nil, err
	}
	t.opts.logger.Info("created trained full split config", "columns", md.Len())

	bestCost, err := u.TryCompress(best.Build(), nil).Get()
	if err != nil {
		return nil, err
	}

	nbClusters := 0
	for i, col := range md.Columns() {
		if nbClusters == 0 {
			nbClusters++
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.expired(start) {
			return best, nil
		}

		candidates, err := t.candidates(u, md, best, col, nbClusters)
		if err != nil {
			return nil, err
		}
		costs, err := t.evaluate(u, candidates)
		if err != nil {
			return nil, err
		}

		var improved bool
		best, bestCost, improved = t.accept(best, bestCost, candidates, costs)
		if !improved {
			nbClusters++
			t.opts.logger.Debug("no improvement", "column", col)
		}
		t.opts.observer.Iteration(i, bestCost)
	}

	t.opts.logger.Debug("final config found", "cost", bestCost.CompressedSize, "clusters", nbClusters)
	return best, nil
}

// candidates adds col to each compatible cluster among the first
// nbClusters and re-optimizes that cluster, one pool task per cluster.
func (t *bottomUpTrainer) candidates(u *CompressionUtils, md *stream.ColumnMetadata,
	best *clustering.Builder, col stream.ColumnInfo, nbClusters int) ([]*clustering.Builder, error) {
	var futures []*taskpool.Future[*clustering.Builder]
	for idx := range min(nbClusters, best.NumClusters()) {
		if !best.IsCompatible(col.Type, col.Width, idx) {
			continue
		}
		futures = append(futures, taskpool.RunErr(t.pool, func() (*clustering.Builder, error) {
			c, err := best.AddToCluster(col, idx)
			if err != nil {
				return nil, err
			}
			info, err := u.BestClusterInfo(c.Clusters()[idx].Members.Tags(), col.Type, col.Width, md)
			if err != nil {
				return nil, err
			}
			return c.WithClusterInfo(idx, info)
		}))
	}
	return taskpool.GetAll(futures)
}
