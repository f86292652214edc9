package clustering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colcluster/stream"
)

// stubAdvisor picks successor len(tags) and the first listed codec for the
// type; unknown columns fail the way the real oracle does.
type stubAdvisor struct {
	codecs CodecsPerType
	calls  int
}

func (a *stubAdvisor) BestClusterInfo(tags []int32, typ stream.Type, width int, md *stream.ColumnMetadata) (ClusterInfo, error) {
	a.calls++
	if len(tags) == 0 {
		return ClusterInfo{}, ErrEmptyTags
	}
	for _, tag := range tags {
		col := stream.ColumnInfo{Tag: tag, Type: typ, Width: width}
		if !md.Contains(col) {
			return ClusterInfo{}, &UnknownTagError{Column: col}
		}
	}
	codec, err := a.codecs.First(typ)
	if err != nil {
		return ClusterInfo{}, err
	}
	return ClusterInfo{SuccessorIdx: len(tags), ClusteringCodecIdx: codec}, nil
}

func testCodecs() CodecsPerType {
	return CodecsPerType{
		stream.Serial:  {0},
		stream.Struct:  {1},
		stream.Numeric: {2},
		stream.String:  {3, 4},
	}
}

// twentyColumns: tags 0-4 numeric/1, 5-9 numeric/8, 10-14 serial/1,
// 15-19 string/0.
func twentyColumns() *stream.ColumnMetadata {
	md := stream.NewColumnMetadata()
	for i := range int32(20) {
		switch {
		case i < 5:
			md.Add(stream.ColumnInfo{Tag: i, Type: stream.Numeric, Width: 1})
		case i < 10:
			md.Add(stream.ColumnInfo{Tag: i, Type: stream.Numeric, Width: 8})
		case i < 15:
			md.Add(stream.ColumnInfo{Tag: i, Type: stream.Serial, Width: 1})
		default:
			md.Add(stream.ColumnInfo{Tag: i, Type: stream.String, Width: 0})
		}
	}
	return md
}

func columnOf(tag int32) stream.ColumnInfo {
	switch {
	case tag < 5:
		return stream.ColumnInfo{Tag: tag, Type: stream.Numeric, Width: 1}
	case tag < 10:
		return stream.ColumnInfo{Tag: tag, Type: stream.Numeric, Width: 8}
	case tag < 15:
		return stream.ColumnInfo{Tag: tag, Type: stream.Serial, Width: 1}
	default:
		return stream.ColumnInfo{Tag: tag, Type: stream.String, Width: 0}
	}
}

func findCluster(t *testing.T, cfg *Config, tag int32) Cluster {
	t.Helper()
	idx := cfg.Lookup(columnOf(tag))
	require.GreaterOrEqual(t, idx, 0, "tag %d not clustered", tag)
	return cfg.Clusters[idx]
}

func TestFullSplit(t *testing.T) {
	md := twentyColumns()
	defaults := TypeDefaults{
		{Type: stream.Numeric, Width: 1}: 1,
		{Type: stream.String, Width: 0}:  3,
	}

	b, err := FullSplit(md, defaults, testCodecs())
	require.NoError(t, err)
	cfg := b.Build()

	assert.Len(t, cfg.TypeDefaults, 2)
	require.Len(t, cfg.Clusters, 20)
	require.NoError(t, cfg.Validate())

	for tag := range int32(20) {
		cl := findCluster(t, cfg, tag)
		assert.Equal(t, 1, cl.Members.Len())

		want := TypeSuccessor{Type: columnOf(tag).Type, EltWidth: columnOf(tag).Width}
		switch {
		case tag < 5:
			want.SuccessorIdx, want.ClusteringCodecIdx = 1, 2
		case tag < 10:
			want.SuccessorIdx, want.ClusteringCodecIdx = 0, 2
		case tag < 15:
			want.SuccessorIdx, want.ClusteringCodecIdx = 0, 0
		default:
			want.SuccessorIdx, want.ClusteringCodecIdx = 3, 3
		}
		assert.Equal(t, want, cl.TypeSuccessor, "tag %d", tag)
	}
}

func TestFullSplit_MissingCodec(t *testing.T) {
	codecs := testCodecs()
	delete(codecs, stream.String)

	_, err := FullSplit(twentyColumns(), nil, codecs)
	assert.ErrorIs(t, err, ErrMissingCodec)
}

func TestStartingConfig(t *testing.T) {
	md := twentyColumns()
	adv := &stubAdvisor{codecs: testCodecs()}

	b, err := StartingConfig(md, adv, nil, testCodecs())
	require.NoError(t, err)
	cfg := b.Build()

	assert.Empty(t, cfg.TypeDefaults)
	require.Len(t, cfg.Clusters, 4)
	assert.Equal(t, 4, adv.calls)
	for tag := range int32(20) {
		cl := findCluster(t, cfg, tag)
		assert.Equal(t, 5, cl.Members.Len())
		assert.Equal(t, 5, cl.SuccessorIdx)
	}
}

func TestAddToCluster(t *testing.T) {
	b, err := FullSplit(twentyColumns(), nil, testCodecs())
	require.NoError(t, err)

	idx := b.Build().Lookup(columnOf(0))
	require.GreaterOrEqual(t, idx, 0)

	for tag := int32(1); tag < 5; tag++ {
		next, err := b.AddToCluster(columnOf(tag), idx)
		require.NoError(t, err)
		assert.Len(t, b.Build().Clusters, 20-int(tag)+1, "receiver must not change")
		b = next
		assert.Len(t, b.Build().Clusters, 20-int(tag))
	}

	cl := b.Clusters()[idx]
	assert.Equal(t, []int32{0, 1, 2, 3, 4}, cl.Members.Tags())
}

func TestAddToCluster_Incompatible(t *testing.T) {
	b, err := FullSplit(twentyColumns(), nil, testCodecs())
	require.NoError(t, err)

	dst := b.Build().Lookup(columnOf(10))
	_, err = b.AddToCluster(columnOf(0), dst)
	assert.ErrorIs(t, err, ErrIncompatibleTypes)

	_, err = b.AddToCluster(columnOf(0), 99)
	assert.ErrorIs(t, err, ErrClusterIndex)

	assert.False(t, b.IsCompatible(stream.Numeric, 1, dst))
	assert.True(t, b.IsCompatible(stream.Serial, 1, dst))
	assert.False(t, b.IsCompatible(stream.Serial, 1, -1))
}

func TestSoloSplit(t *testing.T) {
	md := twentyColumns()
	adv := &stubAdvisor{codecs: testCodecs()}

	b, err := StartingConfig(md, adv, nil, testCodecs())
	require.NoError(t, err)

	for i, tag := range []int32{0, 1, 2} {
		b, err = b.SoloSplit(md, adv, columnOf(tag))
		require.NoError(t, err)
		assert.Len(t, b.Build().Clusters, 5+i)
	}

	cfg := b.Build()
	require.NoError(t, cfg.Validate())
	for _, tag := range []int32{0, 1, 2} {
		cl := findCluster(t, cfg, tag)
		assert.Equal(t, 1, cl.Members.Len())
		assert.Equal(t, 1, cl.SuccessorIdx)
	}
	assert.Equal(t, 2, findCluster(t, cfg, 3).Members.Len())
}

func TestSoloSplit_UnknownTag(t *testing.T) {
	md := twentyColumns()
	adv := &stubAdvisor{codecs: testCodecs()}

	_, err := StoreConfig().SoloSplit(md, adv, stream.ColumnInfo{Tag: 42, Type: stream.Serial, Width: 1})

	var unknown *UnknownTagError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int32(42), unknown.Column.Tag)
}

func TestPairSplit(t *testing.T) {
	md := twentyColumns()
	adv := &stubAdvisor{codecs: testCodecs()}

	b, err := StartingConfig(md, adv, nil, testCodecs())
	require.NoError(t, err)

	b, err = b.PairSplit(md, adv, columnOf(0), columnOf(1))
	require.NoError(t, err)
	assert.Len(t, b.Build().Clusters, 5)

	b, err = b.PairSplit(md, adv, columnOf(2), columnOf(3))
	require.NoError(t, err)
	cfg := b.Build()
	assert.Len(t, cfg.Clusters, 6)

	for _, tag := range []int32{0, 2} {
		cl := findCluster(t, cfg, tag)
		assert.Equal(t, []int32{tag, tag + 1}, cl.Members.Tags())
		assert.Equal(t, 2, cl.SuccessorIdx)
	}
	// tag 4 is alone in what is left of the starting cluster
	assert.Equal(t, []int32{4}, findCluster(t, cfg, 4).Members.Tags())

	_, err = b.PairSplit(md, adv, columnOf(4), columnOf(5))
	assert.ErrorIs(t, err, ErrIncompatibleTypes)
}

func TestSingleCluster(t *testing.T) {
	cfg := SingleCluster([]int32{0}, stream.Numeric, 1, 0, 0).Build()

	assert.Empty(t, cfg.TypeDefaults)
	require.Len(t, cfg.Clusters, 1)
	assert.Equal(t, []int32{0}, cfg.Clusters[0].Members.Tags())
	assert.Equal(t, TypeSuccessor{Type: stream.Numeric, EltWidth: 1}, cfg.Clusters[0].TypeSuccessor)
}

func TestStoreConfig(t *testing.T) {
	cfg := StoreConfig().Build()

	assert.Empty(t, cfg.Clusters)
	d, ok := cfg.TypeDefault(stream.Numeric, 8)
	require.True(t, ok)
	assert.Equal(t, 2, d.ClusteringCodecIdx)
	d, ok = cfg.TypeDefault(stream.String, 0)
	require.True(t, ok)
	assert.Equal(t, 3, d.ClusteringCodecIdx)
}

func TestSetters(t *testing.T) {
	b := SingleCluster([]int32{1, 2}, stream.Serial, 1, 0, 0)

	b2, err := b.SetClusterSuccessor(0, 3)
	require.NoError(t, err)
	b3, err := b2.SetClusteringCodec(0, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, b.Clusters()[0].SuccessorIdx)
	assert.Equal(t, 3, b3.Clusters()[0].SuccessorIdx)
	assert.Equal(t, 1, b3.Clusters()[0].ClusteringCodecIdx)

	_, err = b.SetClusterSuccessor(1, 0)
	assert.ErrorIs(t, err, ErrClusterIndex)
}

func TestMakeSuccessorIndicesUnique(t *testing.T) {
	defaults := TypeDefaults{
		{Type: stream.Numeric, Width: 1}: 1,
		{Type: stream.String, Width: 0}:  3,
	}
	successors := []string{"store", "field_lz", "zstd", "compress_generic"}

	b, err := FullSplit(twentyColumns(), defaults, testCodecs())
	require.NoError(t, err)
	b, err = b.AddToCluster(columnOf(1), b.Build().Lookup(columnOf(0)))
	require.NoError(t, err)

	before := b.Build()
	unique, newSuccessors, err := MakeSuccessorIndicesUnique(b, successors)
	require.NoError(t, err)
	after := unique.Build()

	require.Len(t, after.Clusters, 19)
	require.Len(t, after.TypeDefaults, 2)
	assert.Len(t, newSuccessors, 19+2)

	seen := make(map[int]bool)
	for i := range after.Clusters {
		oldSucc := successors[before.Clusters[i].SuccessorIdx]
		newIdx := after.Clusters[i].SuccessorIdx
		assert.Equal(t, oldSucc, newSuccessors[newIdx])
		assert.False(t, seen[newIdx], "successor %d reused", newIdx)
		seen[newIdx] = true
	}
	for i, d := range after.TypeDefaults {
		assert.Equal(t, successors[before.TypeDefaults[i].SuccessorIdx], newSuccessors[d.SuccessorIdx])
	}
	require.NoError(t, after.ValidateIndices(len(newSuccessors), 5))
}

func TestBuild_DropsEmptyClusters(t *testing.T) {
	b := NewBuilder([]Cluster{
		{TypeSuccessor: TypeSuccessor{Type: stream.Serial, EltWidth: 1}, Members: NewTagSet(1)},
		{TypeSuccessor: TypeSuccessor{Type: stream.Serial, EltWidth: 1}},
	}, nil)

	assert.Equal(t, 2, b.NumClusters())
	assert.Len(t, b.Build().Clusters, 1)
}
