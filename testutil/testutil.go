package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/colcluster/stream"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Bytes returns n uniformly random bytes. The result does not compress.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Kind selects the shape of a generated column.
type Kind int

const (
	// KindCounter is a numeric/8 column growing by small random steps.
	KindCounter Kind = iota
	// KindCategory is a numeric/4 column with a handful of distinct values.
	KindCategory
	// KindRandom is a numeric/8 column of uniform random values.
	KindRandom
	// KindWords is a string column drawn from a small vocabulary.
	KindWords
	// KindText is a serial column of repeated words.
	KindText
	// KindNoise is a serial column of random bytes.
	KindNoise
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindCategory:
		return "category"
	case KindRandom:
		return "random"
	case KindWords:
		return "words"
	case KindText:
		return "text"
	case KindNoise:
		return "noise"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ColumnSpec describes one generated column.
type ColumnSpec struct {
	Tag  int32
	Kind Kind
}

// SampleSpec describes one generated sample.
type SampleSpec struct {
	Rows    int
	Columns []ColumnSpec
}

var vocabulary = []string{
	"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta",
	"iota", "kappa", "lambda", "mu",
}

// Column generates a single tagged stream.
func (r *RNG) Column(rows int, spec ColumnSpec) *stream.Stream {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s *stream.Stream
	switch spec.Kind {
	case KindCounter:
		vals := make([]uint64, rows)
		v := uint64(r.rand.Intn(1000))
		for i := range vals {
			v += uint64(1 + r.rand.Intn(4))
			vals[i] = v
		}
		s, _ = stream.NumericFromUint64(8, vals)
	case KindCategory:
		vals := make([]uint64, rows)
		for i := range vals {
			vals[i] = uint64(r.rand.Intn(5))
		}
		s, _ = stream.NumericFromUint64(4, vals)
	case KindRandom:
		vals := make([]uint64, rows)
		for i := range vals {
			vals[i] = r.rand.Uint64()
		}
		s, _ = stream.NumericFromUint64(8, vals)
	case KindWords:
		var content []byte
		lens := make([]uint32, rows)
		for i := range lens {
			w := vocabulary[r.rand.Intn(len(vocabulary))]
			content = append(content, w...)
			lens[i] = uint32(len(w))
		}
		s, _ = stream.NewString(content, lens)
	case KindText:
		var content []byte
		for range rows {
			content = append(content, vocabulary[r.rand.Intn(len(vocabulary))]...)
			content = append(content, ' ')
		}
		s = stream.NewSerial(content)
	default:
		b := make([]byte, rows*4)
		_, _ = r.rand.Read(b)
		s = stream.NewSerial(b)
	}
	return s.WithTag(spec.Tag)
}

// Sample generates one sample following spec.
func (r *RNG) Sample(spec SampleSpec) stream.MultiInput {
	out := make(stream.MultiInput, len(spec.Columns))
	for i, col := range spec.Columns {
		out[i] = r.Column(spec.Rows, col)
	}
	return out
}

// Samples generates n samples following spec.
func (r *RNG) Samples(n int, spec SampleSpec) []stream.MultiInput {
	out := make([]stream.MultiInput, n)
	for i := range out {
		out[i] = r.Sample(spec)
	}
	return out
}

// NumericSample builds a sample holding one numeric/8 column per values
// slice, tagged by position.
func NumericSample(values ...[]uint64) stream.MultiInput {
	out := make(stream.MultiInput, len(values))
	for i, v := range values {
		s, err := stream.NumericFromUint64(8, v)
		if err != nil {
			panic(err)
		}
		out[i] = s.WithTag(int32(i))
	}
	return out
}
