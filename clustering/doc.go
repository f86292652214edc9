// Package clustering is the data model of a column clustering.
//
// A Config assigns tagged columns to Clusters. Every cluster holds tags of a
// single (type, width) pair and names a successor graph (which compresses the
// combined cluster) and a clustering codec (which combines the member
// streams) by index into lists owned by the caller. Type defaults cover
// columns that no cluster names.
//
// Configs are built through a Builder. Every Builder derivation returns a new
// Builder and leaves the receiver untouched, so trainers can branch many
// candidates off one baseline concurrently.
package clustering
