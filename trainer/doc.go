// Package trainer searches for a clustering configuration that minimizes the
// compressed size of a set of samples.
//
// Every candidate configuration is costed by trial-compressing the samples
// with a CompressionUtils oracle. Three strategies are available:
//
//   - FullSplit keeps every column in a cluster of its own and only picks the
//     best successor and codec for each.
//   - Greedy starts from one cluster per (type, width) pair and repeatedly
//     tries to split or move the most expensive columns.
//   - BottomUp starts from the full split and merges columns one at a time
//     into the clusters built so far.
//
// All strategies are deterministic for a given input: candidates are
// submitted in a fixed order and a candidate only replaces the current best
// when it is strictly smaller.
package trainer
