package trainer

import (
	"context"

	"github.com/hupe1980/colcluster/clustering"
)

type fullSplitTrainer struct {
	base
}

// Train returns the full split with a trained successor and codec for every
// column.
func (t *fullSplitTrainer) Train(ctx context.Context, in Input) (*clustering.Builder, error) {
	u, md, err := t.prepare(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := t.trainedFullSplit(u, md, in.TypeDefaults)
	if err != nil {
		return nil, err
	}
	t.opts.logger.Info("created trained full split config", "columns", md.Len())
	return cfg, nil
}
