// Package sampling chooses which sample files a training run reads and loads
// them from a blob store.
//
// Limiter draws a seeded random subset under a per-file size cap and either a
// sample count or a total byte budget. The budget check stops once the
// running total exceeds maxTotal-maxFile, so a subset can overshoot maxTotal
// by at most one file.
//
// Loader lists a store prefix, asks a Limiter which blobs to keep and decodes
// them into stream.MultiInput values.
package sampling
