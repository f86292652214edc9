// Package colcluster trains column clustering for a graph compressor.
//
// A sample is a list of tagged streams, one per column. Clustering decides
// which columns are compressed together, which codec combines them and
// which successor graph compresses the result. TrainCluster searches for
// the configuration with the smallest compressed size over a set of samples
// and registers it as a new clustering graph with the compressor.
//
// # Quick Start
//
//	c := engine.NewCompressor()
//	_ = c.SelectStartingGraph(engine.GraphClustering)
//
//	res, err := colcluster.TrainCluster(ctx, c, samples,
//	    engine.StandardSuccessors(),
//	    engine.StandardClusteringCodecs(),
//	    clustering.TypeDefaults{{Type: stream.Numeric, Width: 8}: 1},
//	    colcluster.WithTrainer(trainer.Greedy),
//	    colcluster.WithMaxTime(5*time.Minute),
//	)
//	if err != nil {
//	    return err
//	}
//	_ = c.SelectStartingGraph(res.GraphID)
//
// # Trainers
//
//   - trainer.FullSplit: one cluster per column, best successor per column.
//   - trainer.Greedy: the default. Starts from one cluster per type and
//     improves by splitting and moving the most expensive columns.
//   - trainer.BottomUp: merges columns into clusters one at a time.
//
// # Observability
//
// Progress is reported through a *Logger (log/slog) and a MetricsCollector.
// Every record of a run carries the run's ID. The metrics/prom package
// exports the metrics to Prometheus.
//
// # Samples
//
// Samples can be built in memory or loaded from a blob store with
// sampling.Loader, which applies the sampling.Limiter size budget. The
// blobstore package provides local, S3 and MinIO stores.
package colcluster
