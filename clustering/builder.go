package clustering

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/colcluster/stream"
)

// TypeWidth is a (type, width) pair.
type TypeWidth struct {
	Type  stream.Type
	Width int
}

func (tw TypeWidth) String() string { return fmt.Sprintf("%s/%d", tw.Type, tw.Width) }

func compareTypeWidth(a, b TypeWidth) int {
	return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.Width, b.Width))
}

// TypeDefaults maps a (type, width) pair to the successor index used for
// columns of that pair that no cluster names.
type TypeDefaults map[TypeWidth]int

// CodecsPerType lists the valid clustering codec indices for each type.
type CodecsPerType map[stream.Type][]int

// First returns the first codec for typ.
func (c CodecsPerType) First(typ stream.Type) (int, error) {
	codecs := c[typ]
	if len(codecs) == 0 {
		return 0, fmt.Errorf("%w %s", ErrMissingCodec, typ)
	}
	return codecs[0], nil
}

// Builder derives clustering configs. Every method returns a new Builder;
// the receiver is never modified.
type Builder struct {
	clusters     []Cluster
	typeDefaults []TypeSuccessor
}

// NewBuilder returns a builder with the given clusters and defaults. Both
// slices are copied.
func NewBuilder(clusters []Cluster, typeDefaults []TypeSuccessor) *Builder {
	b := &Builder{typeDefaults: slices.Clone(typeDefaults)}
	for _, cl := range clusters {
		b.clusters = append(b.clusters, cl.Clone())
	}
	return b
}

// FromConfig returns a builder reproducing cfg.
func FromConfig(cfg *Config) *Builder {
	return NewBuilder(cfg.Clusters, cfg.TypeDefaults)
}

// Clone returns a deep copy.
func (b *Builder) Clone() *Builder {
	return NewBuilder(b.clusters, b.typeDefaults)
}

// Clusters returns the current clusters. The slice must not be modified.
func (b *Builder) Clusters() []Cluster { return b.clusters }

// TypeDefaults returns the current type defaults. The slice must not be
// modified.
func (b *Builder) TypeDefaults() []TypeSuccessor { return b.typeDefaults }

// NumClusters returns the number of clusters, empty ones included.
func (b *Builder) NumClusters() int { return len(b.clusters) }

// Build returns the finished config. Clusters left empty by earlier moves
// are dropped.
func (b *Builder) Build() *Config {
	cfg := &Config{TypeDefaults: slices.Clone(b.typeDefaults)}
	for _, cl := range b.clusters {
		if cl.Members.Empty() {
			continue
		}
		cfg.Clusters = append(cfg.Clusters, cl.Clone())
	}
	return cfg
}

// clusterOf returns the index of the cluster holding tag, preferring one of
// the given type and width, or -1.
func (b *Builder) clusterOf(tag int32, typ stream.Type, width int) int {
	other := -1
	for i, cl := range b.clusters {
		if !cl.Members.Contains(tag) {
			continue
		}
		if cl.Accepts(typ, width) {
			return i
		}
		if other < 0 {
			other = i
		}
	}
	return other
}

// SoloSplit moves col into a new cluster of its own, re-optimizing the new
// cluster's successor and codec with adv.
func (b *Builder) SoloSplit(md *stream.ColumnMetadata, adv Advisor, col stream.ColumnInfo) (*Builder, error) {
	out := b.Clone()
	if i := out.clusterOf(col.Tag, col.Type, col.Width); i >= 0 && out.clusters[i].Accepts(col.Type, col.Width) {
		out.clusters[i].Members.Remove(col.Tag)
	}

	info, err := adv.BestClusterInfo([]int32{col.Tag}, col.Type, col.Width, md)
	if err != nil {
		return nil, err
	}
	out.clusters = append(out.clusters, Cluster{
		TypeSuccessor: TypeSuccessor{
			Type:               col.Type,
			EltWidth:           col.Width,
			SuccessorIdx:       info.SuccessorIdx,
			ClusteringCodecIdx: info.ClusteringCodecIdx,
		},
		Members: NewTagSet(col.Tag),
	})
	return out, nil
}

// PairSplit moves two columns of the same type and width into a new
// cluster, re-optimized with adv.
func (b *Builder) PairSplit(md *stream.ColumnMetadata, adv Advisor, col1, col2 stream.ColumnInfo) (*Builder, error) {
	if !col1.SameKind(col2) {
		return nil, fmt.Errorf("%w: %s and %s", ErrIncompatibleTypes, col1, col2)
	}

	out := b.Clone()
	for _, col := range []stream.ColumnInfo{col1, col2} {
		if i := out.clusterOf(col.Tag, col.Type, col.Width); i >= 0 && out.clusters[i].Accepts(col.Type, col.Width) {
			out.clusters[i].Members.Remove(col.Tag)
		}
	}

	info, err := adv.BestClusterInfo([]int32{col1.Tag, col2.Tag}, col1.Type, col1.Width, md)
	if err != nil {
		return nil, err
	}
	out.clusters = append(out.clusters, Cluster{
		TypeSuccessor: TypeSuccessor{
			Type:               col1.Type,
			EltWidth:           col1.Width,
			SuccessorIdx:       info.SuccessorIdx,
			ClusteringCodecIdx: info.ClusteringCodecIdx,
		},
		Members: NewTagSet(col1.Tag, col2.Tag),
	})
	return out, nil
}

// IsCompatible reports whether a column of typ and width may join cluster
// idx.
func (b *Builder) IsCompatible(typ stream.Type, width int, idx int) bool {
	if idx < 0 || idx >= len(b.clusters) {
		return false
	}
	return b.clusters[idx].Accepts(typ, width)
}

// AddToCluster moves col from its current cluster into cluster idx without
// re-optimizing either cluster.
func (b *Builder) AddToCluster(col stream.ColumnInfo, idx int) (*Builder, error) {
	if idx < 0 || idx >= len(b.clusters) {
		return nil, fmt.Errorf("%w: %d of %d", ErrClusterIndex, idx, len(b.clusters))
	}

	out := b.Clone()
	if i := out.clusterOf(col.Tag, col.Type, col.Width); i >= 0 {
		if !out.clusters[i].Accepts(col.Type, col.Width) {
			return nil, fmt.Errorf("%w: %s is in a %s/%d cluster",
				ErrIncompatibleTypes, col, out.clusters[i].Type, out.clusters[i].EltWidth)
		}
		out.clusters[i].Members.Remove(col.Tag)
	}
	if !out.clusters[idx].Accepts(col.Type, col.Width) {
		return nil, fmt.Errorf("%w: %s into %s/%d cluster %d",
			ErrIncompatibleTypes, col, out.clusters[idx].Type, out.clusters[idx].EltWidth, idx)
	}
	out.clusters[idx].Members.Add(col.Tag)
	return out, nil
}

// SetClusterSuccessor sets the successor index of cluster idx.
func (b *Builder) SetClusterSuccessor(idx, successor int) (*Builder, error) {
	if idx < 0 || idx >= len(b.clusters) {
		return nil, fmt.Errorf("%w: %d of %d", ErrClusterIndex, idx, len(b.clusters))
	}
	out := b.Clone()
	out.clusters[idx].SuccessorIdx = successor
	return out, nil
}

// SetClusteringCodec sets the clustering codec index of cluster idx.
func (b *Builder) SetClusteringCodec(idx, codec int) (*Builder, error) {
	if idx < 0 || idx >= len(b.clusters) {
		return nil, fmt.Errorf("%w: %d of %d", ErrClusterIndex, idx, len(b.clusters))
	}
	out := b.Clone()
	out.clusters[idx].ClusteringCodecIdx = codec
	return out, nil
}

// WithClusterInfo sets both the successor and the codec of cluster idx.
func (b *Builder) WithClusterInfo(idx int, info ClusterInfo) (*Builder, error) {
	if idx < 0 || idx >= len(b.clusters) {
		return nil, fmt.Errorf("%w: %d of %d", ErrClusterIndex, idx, len(b.clusters))
	}
	out := b.Clone()
	out.clusters[idx].SuccessorIdx = info.SuccessorIdx
	out.clusters[idx].ClusteringCodecIdx = info.ClusteringCodecIdx
	return out, nil
}

func buildTypeDefaults(defaults TypeDefaults, codecs CodecsPerType) ([]TypeSuccessor, error) {
	keys := slices.SortedFunc(maps.Keys(defaults), compareTypeWidth)
	out := make([]TypeSuccessor, 0, len(keys))
	for _, tw := range keys {
		codec, err := codecs.First(tw.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, TypeSuccessor{
			Type:               tw.Type,
			EltWidth:           tw.Width,
			SuccessorIdx:       defaults[tw],
			ClusteringCodecIdx: codec,
		})
	}
	return out, nil
}

// FullSplit puts every column in its own cluster, using the type default
// successor (or 0) and the first codec of the column's type.
func FullSplit(md *stream.ColumnMetadata, defaults TypeDefaults, codecs CodecsPerType) (*Builder, error) {
	typeDefaults, err := buildTypeDefaults(defaults, codecs)
	if err != nil {
		return nil, err
	}

	b := &Builder{typeDefaults: typeDefaults}
	for _, col := range md.Columns() {
		codec, err := codecs.First(col.Type)
		if err != nil {
			return nil, err
		}
		b.clusters = append(b.clusters, Cluster{
			TypeSuccessor: TypeSuccessor{
				Type:               col.Type,
				EltWidth:           col.Width,
				SuccessorIdx:       defaults[TypeWidth{Type: col.Type, Width: col.Width}],
				ClusteringCodecIdx: codec,
			},
			Members: NewTagSet(col.Tag),
		})
	}
	return b, nil
}

// StartingConfig groups all columns of each (type, width) pair into one
// cluster whose successor and codec are chosen by adv.
func StartingConfig(md *stream.ColumnMetadata, adv Advisor, defaults TypeDefaults, codecs CodecsPerType) (*Builder, error) {
	typeDefaults, err := buildTypeDefaults(defaults, codecs)
	if err != nil {
		return nil, err
	}

	groups := make(map[TypeWidth][]int32)
	for _, col := range md.Columns() {
		tw := TypeWidth{Type: col.Type, Width: col.Width}
		groups[tw] = append(groups[tw], col.Tag)
	}

	b := &Builder{typeDefaults: typeDefaults}
	for _, tw := range slices.SortedFunc(maps.Keys(groups), compareTypeWidth) {
		tags := groups[tw]
		info, err := adv.BestClusterInfo(tags, tw.Type, tw.Width, md)
		if err != nil {
			return nil, err
		}
		b.clusters = append(b.clusters, Cluster{
			TypeSuccessor: TypeSuccessor{
				Type:               tw.Type,
				EltWidth:           tw.Width,
				SuccessorIdx:       info.SuccessorIdx,
				ClusteringCodecIdx: info.ClusteringCodecIdx,
			},
			Members: NewTagSet(tags...),
		})
	}
	return b, nil
}

// StoreConfig returns a config with no clusters whose defaults route every
// standard type to successor 0 with the matching concat codec.
func StoreConfig() *Builder {
	return &Builder{typeDefaults: []TypeSuccessor{
		{Type: stream.Serial, EltWidth: 1, SuccessorIdx: 0, ClusteringCodecIdx: 0},
		{Type: stream.Numeric, EltWidth: 8, SuccessorIdx: 0, ClusteringCodecIdx: 2},
		{Type: stream.String, EltWidth: 0, SuccessorIdx: 0, ClusteringCodecIdx: 3},
	}}
}

// SingleCluster returns a config with exactly one cluster.
func SingleCluster(tags []int32, typ stream.Type, width, successor, codec int) *Builder {
	return &Builder{clusters: []Cluster{{
		TypeSuccessor: TypeSuccessor{
			Type:               typ,
			EltWidth:           width,
			SuccessorIdx:       successor,
			ClusteringCodecIdx: codec,
		},
		Members: NewTagSet(tags...),
	}}}
}

// MakeSuccessorIndicesUnique gives every non-empty cluster a private
// successor slot. It returns the rewritten builder and the new successor
// list: entry i is the successor of the i-th non-empty cluster, followed by
// one entry per distinct successor referenced by the type defaults, whose
// indices are rewritten to match.
func MakeSuccessorIndicesUnique[G any](b *Builder, successors []G) (*Builder, []G, error) {
	out := b.Clone()
	unique := make([]G, 0, len(out.clusters)+len(out.typeDefaults))
	for i := range out.clusters {
		cl := &out.clusters[i]
		if cl.Members.Empty() {
			continue
		}
		if cl.SuccessorIdx < 0 || cl.SuccessorIdx >= len(successors) {
			return nil, nil, fmt.Errorf("%w: cluster %d successor %d of %d", ErrInvalidConfig, i, cl.SuccessorIdx, len(successors))
		}
		unique = append(unique, successors[cl.SuccessorIdx])
		cl.SuccessorIdx = len(unique) - 1
	}

	remap := make(map[int]int)
	for i := range out.typeDefaults {
		d := &out.typeDefaults[i]
		if d.SuccessorIdx < 0 || d.SuccessorIdx >= len(successors) {
			return nil, nil, fmt.Errorf("%w: default %s successor %d of %d", ErrInvalidConfig, d.TypeWidth(), d.SuccessorIdx, len(successors))
		}
		idx, ok := remap[d.SuccessorIdx]
		if !ok {
			unique = append(unique, successors[d.SuccessorIdx])
			idx = len(unique) - 1
			remap[d.SuccessorIdx] = idx
		}
		d.SuccessorIdx = idx
	}
	return out, unique, nil
}
