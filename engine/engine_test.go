package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/stream"
	"github.com/hupe1980/colcluster/testutil"
)

var (
	testSuccessors = []GraphID{GraphStore, GraphFieldLZ, GraphZstd, GraphCompressGeneric}
	testCodecs     = []NodeID{NodeConcatSerial, NodeConcatStruct, NodeConcatNumeric, NodeConcatString, NodeInterleaveString}
)

func mustString(t *testing.T, tag int32, words ...string) *stream.Stream {
	t.Helper()
	var (
		content []byte
		lens    []uint32
	)
	for _, w := range words {
		content = append(content, w...)
		lens = append(lens, uint32(len(w)))
	}
	s, err := stream.NewString(content, lens)
	require.NoError(t, err)
	return s.WithTag(tag)
}

func TestCompressor_Registry(t *testing.T) {
	c := NewCompressor()

	mask, err := c.InputMask(GraphZstd)
	require.NoError(t, err)
	assert.True(t, mask.Widen().Accepts(stream.Numeric))
	assert.False(t, mask.Widen().Accepts(stream.String))

	_, err = c.InputMask(GraphID(999))
	assert.ErrorIs(t, err, ErrUnknownGraph)

	sig, err := c.NodeSignature(NodeInterleaveString)
	require.NoError(t, err)
	typ, ok := sig.ClusteringType()
	assert.True(t, ok)
	assert.Equal(t, stream.String, typ)

	sig, err = c.NodeSignature(NodeDeltaInt)
	require.NoError(t, err)
	_, ok = sig.ClusteringType()
	assert.False(t, ok)

	id, ok := c.LookupGraph("field_lz")
	require.True(t, ok)
	assert.Equal(t, GraphFieldLZ, id)
	assert.Equal(t, "concat_numeric", c.NodeName(NodeConcatNumeric))
}

func TestCompile_Validation(t *testing.T) {
	c := NewCompressor()
	cfg := clustering.SingleCluster([]int32{0}, stream.Numeric, 8, 4, 0).Build()

	_, err := c.Compile(cfg, testSuccessors, testCodecs)
	assert.ErrorIs(t, err, clustering.ErrInvalidConfig)

	_, err = c.Compile(clustering.StoreConfig().Build(), []GraphID{GraphClustering}, testCodecs)
	assert.ErrorIs(t, err, ErrUnknownGraph)

	_, err = c.Compile(clustering.StoreConfig().Build(), []GraphID{GraphStore}, []NodeID{NodeConcatSerial, 77, 78, 79})
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestRunnable_SingleStreamBypassesCodec(t *testing.T) {
	c := NewCompressor()
	sample := testutil.NumericSample([]uint64{0, 1, 2, 1, 1})

	// concat_numeric would prepend a sizes stream
	r, err := c.Compile(clustering.SingleCluster([]int32{0}, stream.Numeric, 8, 0, 2).Build(), testSuccessors, testCodecs)
	require.NoError(t, err)

	out, err := r.Compress(sample)
	require.NoError(t, err)
	// magic + graph id + length + 40 raw bytes
	assert.Equal(t, 4+1+1+40, len(out))
}

func TestRunnable_ClusterRunsCodec(t *testing.T) {
	c := NewCompressor()
	sample := testutil.NumericSample([]uint64{0, 1, 2, 1, 1}, []uint64{1, 2, 3, 2, 2})

	r, err := c.Compile(clustering.SingleCluster([]int32{0, 1}, stream.Numeric, 8, 0, 2).Build(), testSuccessors, testCodecs)
	require.NoError(t, err)
	out, err := r.Compress(sample)
	require.NoError(t, err)
	assert.Greater(t, len(out), 80, "data is stored raw after the sizes stream")

}

func TestCompile_CodecSignature(t *testing.T) {
	c := NewCompressor()

	t.Run("codec of another type", func(t *testing.T) {
		// concat_serial for a numeric cluster, even a singleton one
		_, err := c.Compile(clustering.SingleCluster([]int32{0}, stream.Numeric, 8, 0, 0).Build(), testSuccessors, testCodecs)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("fixed arity codec", func(t *testing.T) {
		_, err := c.Compile(clustering.SingleCluster([]int32{0}, stream.Numeric, 8, 0, 0).Build(), testSuccessors, []NodeID{NodeDeltaInt})
		assert.ErrorIs(t, err, ErrNotClusteringCodec)

		_, err = c.RegisterClusteringGraph(clustering.SingleCluster([]int32{0}, stream.Numeric, 8, 0, 0).Build(), testSuccessors, []NodeID{NodeDeltaInt})
		assert.ErrorIs(t, err, ErrNotClusteringCodec)
	})

	t.Run("type default", func(t *testing.T) {
		cfg := clustering.NewBuilder(nil, []clustering.TypeSuccessor{
			{Type: stream.String, EltWidth: 0, SuccessorIdx: 0, ClusteringCodecIdx: 2},
		}).Build()
		_, err := c.Compile(cfg, testSuccessors, testCodecs)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestRunnable_SuccessorTypeMismatch(t *testing.T) {
	c := NewCompressor()
	sample := stream.MultiInput{mustString(t, 5, "a", "bb")}

	// zstd only takes serial (and, widened, numeric or struct)
	r, err := c.Compile(clustering.SingleCluster([]int32{5}, stream.String, 0, 2, 3).Build(), testSuccessors, testCodecs)
	require.NoError(t, err)
	_, err = r.Compress(sample)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestRunnable_UnconfiguredColumnsUseDefaults(t *testing.T) {
	c := NewCompressor()
	rng := testutil.NewRNG(7)
	sample := rng.Sample(testutil.SampleSpec{Rows: 256, Columns: []testutil.ColumnSpec{
		{Tag: 0, Kind: testutil.KindCounter},
		{Tag: 1, Kind: testutil.KindWords},
	}})

	empty, err := c.Compile(&clustering.Config{}, testSuccessors, testCodecs)
	require.NoError(t, err)
	generic, err := empty.Compress(sample)
	require.NoError(t, err)

	stored, err := c.Compile(clustering.StoreConfig().Build(), testSuccessors, testCodecs)
	require.NoError(t, err)
	raw, err := stored.Compress(sample)
	require.NoError(t, err)

	assert.Less(t, len(generic), len(raw))
	assert.Greater(t, len(raw), int(sample.Size()))
}

func TestRunnable_ClusteringSimilarColumnsHelps(t *testing.T) {
	c := NewCompressor()
	noise := testutil.NewRNG(3).Bytes(4096)
	sample := stream.MultiInput{
		stream.NewSerial(noise).WithTag(0),
		stream.NewSerial(append([]byte(nil), noise...)).WithTag(1),
	}

	split := &clustering.Config{Clusters: []clustering.Cluster{
		{TypeSuccessor: clustering.TypeSuccessor{Type: stream.Serial, EltWidth: 1, SuccessorIdx: 2}, Members: clustering.NewTagSet(0)},
		{TypeSuccessor: clustering.TypeSuccessor{Type: stream.Serial, EltWidth: 1, SuccessorIdx: 2}, Members: clustering.NewTagSet(1)},
	}}
	joined := clustering.SingleCluster([]int32{0, 1}, stream.Serial, 1, 2, 0).Build()

	sizeOf := func(cfg *clustering.Config) int {
		r, err := c.Compile(cfg, testSuccessors, testCodecs)
		require.NoError(t, err)
		out, err := r.Compress(sample)
		require.NoError(t, err)
		return len(out)
	}

	assert.Less(t, sizeOf(joined), sizeOf(split)-3000)
}

func TestRunnable_Interleave(t *testing.T) {
	c := NewCompressor()
	cfg := clustering.SingleCluster([]int32{0, 1}, stream.String, 0, 0, 4).Build()
	r, err := c.Compile(cfg, testSuccessors, testCodecs)
	require.NoError(t, err)

	_, err = r.Compress(stream.MultiInput{mustString(t, 0, "a", "b"), mustString(t, 1, "c", "d")})
	require.NoError(t, err)

	_, err = r.Compress(stream.MultiInput{mustString(t, 0, "a", "b"), mustString(t, 1, "c")})
	assert.Error(t, err)
}

func TestHuffman_Incompressible(t *testing.T) {
	noise := stream.NewSerial(testutil.NewRNG(1).Bytes(8192))
	_, err := compressHuffman(noise)
	assert.ErrorIs(t, err, ErrIncompressible)

	_, err = compressFSE(noise)
	assert.ErrorIs(t, err, ErrIncompressible)

	rle := stream.NewSerial(make([]byte, 1000))
	out, err := compressHuffman(rle)
	require.NoError(t, err)
	assert.Less(t, len(out), 10)
}

func TestSuccessors_ProduceOutput(t *testing.T) {
	c := NewCompressor()
	text := testutil.NewRNG(9).Column(512, testutil.ColumnSpec{Tag: 0, Kind: testutil.KindText})

	for _, id := range []GraphID{GraphStore, GraphZstd, GraphLZ4, GraphSnappy, GraphS2, GraphFlate, GraphHuffman, GraphFSE, GraphCompressGeneric} {
		t.Run(c.GraphName(id), func(t *testing.T) {
			out, err := c.CompressWith(id, []*stream.Stream{text})
			require.NoError(t, err)
			assert.NotEmpty(t, out)
			if id != GraphStore {
				assert.Less(t, len(out), text.ContentSize())
			}
		})
	}
}

func TestRegisterClusteringGraph(t *testing.T) {
	c := NewCompressor()
	require.NoError(t, c.SelectStartingGraph(GraphClustering))

	cfg := clustering.SingleCluster([]int32{0, 1}, stream.Numeric, 8, 1, 2).Build()
	id, err := c.RegisterClusteringGraph(cfg, testSuccessors, testCodecs)
	require.NoError(t, err)

	base, err := c.BaseGraph(id)
	require.NoError(t, err)
	assert.Equal(t, GraphClustering, base)

	got, successors, codecs, err := c.ClusteringParams(id)
	require.NoError(t, err)
	assert.True(t, cfg.Equivalent(got))
	assert.Equal(t, testSuccessors, successors)
	assert.Equal(t, testCodecs, codecs)

	sample := testutil.NumericSample([]uint64{0, 1, 2, 1, 1}, []uint64{1, 2, 3, 2, 2})
	viaBase, err := c.Compress(sample)
	require.NoError(t, err)

	require.NoError(t, c.SelectStartingGraph(id))
	viaTrained, err := c.Compress(sample)
	require.NoError(t, err)
	assert.NotEqual(t, len(viaBase), 0)
	assert.NotEqual(t, len(viaTrained), 0)

	_, _, _, err = c.ClusteringParams(GraphZstd)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = c.RegisterClusteringGraph(clustering.SingleCluster([]int32{0}, stream.Numeric, 8, 9, 0).Build(), testSuccessors, testCodecs)
	assert.Error(t, err)
}

func TestCompress_NoStartingGraph(t *testing.T) {
	_, err := NewCompressor().Compress(nil)
	assert.ErrorIs(t, err, ErrNoStartingGraph)
}

func TestCompileParams(t *testing.T) {
	c := NewCompressor()
	cfg := clustering.SingleCluster([]int32{0, 1}, stream.Numeric, 8, 1, 2).Build()

	params, err := c.EncodeParams(cfg)
	require.NoError(t, err)
	r, err := c.CompileParams(params, testSuccessors, testCodecs)
	require.NoError(t, err)
	assert.True(t, r.cfg.Equivalent(cfg))

	_, err = c.CompileParams([]byte{0xc1}, testSuccessors, testCodecs)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
