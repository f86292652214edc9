// Package engine is a reference graph-execution engine for clustering
// training.
//
// It knows a fixed set of successor graphs (terminal compressors such as
// zstd, lz4 or huffman) and clustering codecs (nodes that combine several
// streams of one type into a single stream), plus the generic clustering
// graph that routes tagged streams through them according to a
// clustering.Config.
//
// The engine only has to produce realistic compressed sizes for training:
// frames carry enough framing to be measured, but there is no decoder.
//
// # Clustering graph semantics
//
//   - Streams whose (tag, type, width) is named by a cluster are grouped into
//     that cluster, in input order.
//   - Any other column forms a cluster of its own using the type default for
//     its (type, width), or GraphCompressGeneric with the standard concat
//     codec of its type when no default exists.
//   - A cluster holding a single stream goes straight to its successor.
//   - Otherwise the clustering codec combines the streams. A codec with two
//     outputs emits a sizes stream, which is sent to GraphFieldLZ, followed
//     by the combined stream, which is sent to the successor.
package engine
