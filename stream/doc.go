// Package stream defines the typed column buffers that clustering operates on.
//
// A sample is a MultiInput: an ordered list of Streams, each carrying a type
// (serial, struct, numeric or string), an element width and an integer
// metadata map. The clustering tag of a stream is stored in its metadata under
// ClusteringTagMetadataID. ColumnInfo identifies a column by (tag, type,
// width) and ColumnMetadata is the deduplicated set of columns observed across
// all samples.
package stream
