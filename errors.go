package colcluster

import "errors"

var (
	// ErrNotClusteringGraph is returned when the compressor's starting graph
	// is neither the generic clustering graph nor derived from it.
	ErrNotClusteringGraph = errors.New("colcluster: starting graph is not a clustering graph")

	// ErrNoSamples is returned when training is requested without samples.
	ErrNoSamples = errors.New("colcluster: no samples to train on")
)
