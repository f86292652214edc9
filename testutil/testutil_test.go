package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colcluster/stream"
)

func TestColumnKinds(t *testing.T) {
	rng := NewRNG(4711)

	cases := []struct {
		kind  Kind
		typ   stream.Type
		width int
	}{
		{KindCounter, stream.Numeric, 8},
		{KindCategory, stream.Numeric, 4},
		{KindRandom, stream.Numeric, 8},
		{KindWords, stream.String, 0},
		{KindText, stream.Serial, 1},
		{KindNoise, stream.Serial, 1},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			s := rng.Column(64, ColumnSpec{Tag: 3, Kind: tc.kind})

			col, err := s.Column()
			require.NoError(t, err)
			assert.Equal(t, stream.ColumnInfo{Tag: 3, Type: tc.typ, Width: tc.width}, col)
			assert.Positive(t, s.ContentSize())
		})
	}
}

func TestSamples_Deterministic(t *testing.T) {
	spec := SampleSpec{Rows: 32, Columns: []ColumnSpec{{Tag: 0, Kind: KindCounter}, {Tag: 1, Kind: KindWords}}}

	a := NewRNG(1).Samples(3, spec)
	b := NewRNG(1).Samples(3, spec)

	require.Len(t, a, 3)
	for i := range a {
		for j := range a[i] {
			assert.Equal(t, a[i][j].Bytes(), b[i][j].Bytes())
		}
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Bytes(16)
	rng.Reset()
	v2 := rng.Bytes(16)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestNumericSample(t *testing.T) {
	sample := NumericSample([]uint64{0, 1, 2}, []uint64{5})

	require.Len(t, sample, 2)
	tag, err := sample[1].Tag()
	require.NoError(t, err)
	assert.Equal(t, int32(1), tag)
	assert.Equal(t, 3, sample[0].NumElts())
}
