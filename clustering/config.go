package clustering

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/hupe1980/colcluster/stream"
)

// TypeSuccessor binds a (type, width) pair to a successor and a clustering
// codec, both given as indices.
type TypeSuccessor struct {
	Type               stream.Type `json:"type" yaml:"type" msgpack:"type"`
	EltWidth           int         `json:"elt_width" yaml:"elt_width" msgpack:"elt_width"`
	SuccessorIdx       int         `json:"successor" yaml:"successor" msgpack:"successor"`
	ClusteringCodecIdx int         `json:"codec" yaml:"codec" msgpack:"codec"`
}

// TypeWidth returns the key of the pair.
func (ts TypeSuccessor) TypeWidth() TypeWidth {
	return TypeWidth{Type: ts.Type, Width: ts.EltWidth}
}

// Cluster is a group of tags compressed together.
type Cluster struct {
	TypeSuccessor
	Members TagSet
}

// Clone returns a deep copy.
func (c Cluster) Clone() Cluster {
	return Cluster{TypeSuccessor: c.TypeSuccessor, Members: c.Members.Clone()}
}

// Accepts reports whether a column of this type and width may join.
func (c Cluster) Accepts(typ stream.Type, width int) bool {
	return c.Type == typ && c.EltWidth == width
}

// Config is a finished clustering configuration. Treat it as immutable;
// derive changes through a Builder.
type Config struct {
	Clusters     []Cluster
	TypeDefaults []TypeSuccessor
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := &Config{
		Clusters:     make([]Cluster, len(c.Clusters)),
		TypeDefaults: slices.Clone(c.TypeDefaults),
	}
	for i, cl := range c.Clusters {
		out.Clusters[i] = cl.Clone()
	}
	return out
}

// Validate checks the structural invariants: valid types, non-empty
// clusters, a column in at most one cluster and no duplicated type default.
// All violations are reported.
func (c *Config) Validate() error {
	var result *multierror.Error

	seen := make(map[stream.ColumnInfo]int)
	for i, cl := range c.Clusters {
		if !cl.Type.Valid() {
			result = multierror.Append(result, fmt.Errorf("%w: cluster %d has invalid type %s", ErrInvalidConfig, i, cl.Type))
		}
		if cl.Members.Empty() {
			result = multierror.Append(result, fmt.Errorf("%w: cluster %d is empty", ErrInvalidConfig, i))
		}
		for _, tag := range cl.Members.Tags() {
			col := stream.ColumnInfo{Tag: tag, Type: cl.Type, Width: cl.EltWidth}
			if prev, ok := seen[col]; ok {
				result = multierror.Append(result, fmt.Errorf("%w: %s in clusters %d and %d", ErrInvalidConfig, col, prev, i))
				continue
			}
			seen[col] = i
		}
	}

	defaults := make(map[TypeWidth]struct{})
	for _, d := range c.TypeDefaults {
		if !d.Type.Valid() {
			result = multierror.Append(result, fmt.Errorf("%w: type default has invalid type %s", ErrInvalidConfig, d.Type))
		}
		if _, ok := defaults[d.TypeWidth()]; ok {
			result = multierror.Append(result, fmt.Errorf("%w: duplicate type default for %s", ErrInvalidConfig, d.TypeWidth()))
		}
		defaults[d.TypeWidth()] = struct{}{}
	}

	return result.ErrorOrNil()
}

// ValidateIndices checks that every successor and codec index is in range.
func (c *Config) ValidateIndices(numSuccessors, numCodecs int) error {
	var result *multierror.Error

	check := func(what string, ts TypeSuccessor) {
		if ts.SuccessorIdx < 0 || ts.SuccessorIdx >= numSuccessors {
			result = multierror.Append(result, fmt.Errorf("%w: %s successor index %d out of range [0,%d)", ErrInvalidConfig, what, ts.SuccessorIdx, numSuccessors))
		}
		if ts.ClusteringCodecIdx < 0 || ts.ClusteringCodecIdx >= numCodecs {
			result = multierror.Append(result, fmt.Errorf("%w: %s codec index %d out of range [0,%d)", ErrInvalidConfig, what, ts.ClusteringCodecIdx, numCodecs))
		}
	}
	for i, cl := range c.Clusters {
		check(fmt.Sprintf("cluster %d", i), cl.TypeSuccessor)
	}
	for _, d := range c.TypeDefaults {
		check("default "+d.TypeWidth().String(), d)
	}

	return result.ErrorOrNil()
}

// Lookup returns the cluster index holding the column, or -1.
func (c *Config) Lookup(col stream.ColumnInfo) int {
	for i, cl := range c.Clusters {
		if cl.Accepts(col.Type, col.Width) && cl.Members.Contains(col.Tag) {
			return i
		}
	}
	return -1
}

// TypeDefault returns the default for a (type, width) pair.
func (c *Config) TypeDefault(typ stream.Type, width int) (TypeSuccessor, bool) {
	for _, d := range c.TypeDefaults {
		if d.Type == typ && d.EltWidth == width {
			return d, true
		}
	}
	return TypeSuccessor{}, false
}

type canonicalCluster struct {
	ts   TypeSuccessor
	tags []int32
}

func compareTypeSuccessor(a, b TypeSuccessor) int {
	return cmp.Or(
		cmp.Compare(a.Type, b.Type),
		cmp.Compare(a.EltWidth, b.EltWidth),
		cmp.Compare(a.SuccessorIdx, b.SuccessorIdx),
		cmp.Compare(a.ClusteringCodecIdx, b.ClusteringCodecIdx),
	)
}

func (c *Config) canonical() ([]canonicalCluster, []TypeSuccessor) {
	clusters := make([]canonicalCluster, 0, len(c.Clusters))
	for _, cl := range c.Clusters {
		if cl.Members.Empty() {
			continue
		}
		clusters = append(clusters, canonicalCluster{ts: cl.TypeSuccessor, tags: cl.Members.Tags()})
	}
	slices.SortFunc(clusters, func(a, b canonicalCluster) int {
		return cmp.Or(compareTypeSuccessor(a.ts, b.ts), slices.Compare(a.tags, b.tags))
	})
	defaults := slices.Clone(c.TypeDefaults)
	slices.SortFunc(defaults, compareTypeSuccessor)
	return clusters, defaults
}

// Equivalent reports whether both configs describe the same clustering,
// ignoring the order of clusters and type defaults.
func (c *Config) Equivalent(o *Config) bool {
	ac, ad := c.canonical()
	bc, bd := o.canonical()
	if !slices.Equal(ad, bd) || len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if ac[i].ts != bc[i].ts || !slices.Equal(ac[i].tags, bc[i].tags) {
			return false
		}
	}
	return true
}

// Fingerprint hashes the canonical form. Equivalent configs share a
// fingerprint.
func (c *Config) Fingerprint() uint64 {
	clusters, defaults := c.canonical()

	d := xxhash.New()
	var buf [8]byte
	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = d.Write(buf[:])
	}
	writeTS := func(ts TypeSuccessor) {
		writeInt(int64(ts.Type))
		writeInt(int64(ts.EltWidth))
		writeInt(int64(ts.SuccessorIdx))
		writeInt(int64(ts.ClusteringCodecIdx))
	}

	writeInt(int64(len(clusters)))
	for _, cl := range clusters {
		writeTS(cl.ts)
		writeInt(int64(len(cl.tags)))
		for _, t := range cl.tags {
			writeInt(int64(t))
		}
	}
	writeInt(int64(len(defaults)))
	for _, ts := range defaults {
		writeTS(ts)
	}
	return d.Sum64()
}

// String renders a human-readable dump, one line per cluster.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "clusters (%d):\n", len(c.Clusters))
	for i, cl := range c.Clusters {
		fmt.Fprintf(&sb, "  [%d] %s/%d successor=%d codec=%d tags=%v\n",
			i, cl.Type, cl.EltWidth, cl.SuccessorIdx, cl.ClusteringCodecIdx, cl.Members.Tags())
	}
	fmt.Fprintf(&sb, "type defaults (%d):\n", len(c.TypeDefaults))
	for _, d := range c.TypeDefaults {
		fmt.Fprintf(&sb, "  %s/%d successor=%d codec=%d\n", d.Type, d.EltWidth, d.SuccessorIdx, d.ClusteringCodecIdx)
	}
	return sb.String()
}
