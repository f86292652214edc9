// Package testutil provides testing utilities for colcluster.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and generators for columnar
// samples whose columns have known compression behavior.
//
// # Random Samples
//
//	rng := testutil.NewRNG(seed)
//	samples := rng.Samples(4, testutil.SampleSpec{
//		Rows: 1000,
//		Columns: []testutil.ColumnSpec{
//			{Tag: 0, Kind: testutil.KindCounter},
//			{Tag: 1, Kind: testutil.KindCounter},
//			{Tag: 2, Kind: testutil.KindWords},
//		},
//	})
package testutil
