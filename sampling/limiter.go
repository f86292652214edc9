package sampling

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultMaxFileSize is the largest sample considered for training.
	DefaultMaxFileSize uint64 = 150 << 20
	// DefaultMaxTotalSize is the approximate byte budget of a training set.
	DefaultMaxTotalSize uint64 = 300 << 20
	// DefaultSeed makes subsets reproducible when no seed is given.
	DefaultSeed uint64 = 0x5eed
)

var (
	// ErrNoSamples is returned when there is nothing to pick from.
	ErrNoSamples = errors.New("sampling: no samples provided")
	// ErrAllSamplesTooLarge is returned when every sample exceeds the
	// per-file limit.
	ErrAllSamplesTooLarge = errors.New("sampling: all samples exceed the maximum file size")
)

// StopFunc reports whether picking should end, given the bytes and number of
// samples picked so far.
type StopFunc func(subsetSize uint64, count int) bool

// Limiter selects a bounded random subset of samples.
type Limiter struct {
	maxTotalSize uint64
	maxFileSize  uint64
	numSamples   int // 0 means bounded by size
	all          bool
	seed         uint64
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithNumSamples requests exactly n samples instead of a byte budget.
func WithNumSamples(n int) LimiterOption {
	return func(l *Limiter) {
		if n > 0 {
			l.numSamples = n
		}
	}
}

// WithAllSamples trains on every sample regardless of count and size
// limits. It overrides WithNumSamples.
func WithAllSamples() LimiterOption {
	return func(l *Limiter) {
		l.all = true
	}
}

// WithSeed sets the RNG seed.
func WithSeed(seed uint64) LimiterOption {
	return func(l *Limiter) {
		l.seed = seed
	}
}

// NewLimiter creates a Limiter. Zero sizes select the defaults.
func NewLimiter(maxTotalSize, maxFileSize uint64, opts ...LimiterOption) *Limiter {
	if maxTotalSize == 0 {
		maxTotalSize = DefaultMaxTotalSize
	}
	if maxFileSize == 0 {
		maxFileSize = DefaultMaxFileSize
	}
	l := &Limiter{
		maxTotalSize: maxTotalSize,
		maxFileSize:  maxFileSize,
		seed:         DefaultSeed,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) MaxTotalSize() uint64 { return l.maxTotalSize }
func (l *Limiter) MaxFileSize() uint64  { return l.maxFileSize }
func (l *Limiter) NumSamples() int      { return l.numSamples }
func (l *Limiter) AllSamples() bool     { return l.all }

// Pick drops every size above the per-file limit and then draws remaining
// indices uniformly at random, without replacement, until stop returns true
// or nothing is left. The draw order is a pure function of the seed.
func (l *Limiter) Pick(sizes []uint64, stop StopFunc) []int {
	candidates := make([]int, 0, len(sizes))
	for i, sz := range sizes {
		if sz <= l.maxFileSize {
			candidates = append(candidates, i)
		}
	}

	rng := rand.New(rand.NewPCG(l.seed, l.seed^0x9e3779b97f4a7c15))
	var (
		picked []int
		total  uint64
	)
	for len(candidates) > 0 && !stop(total, len(picked)) {
		j := rng.IntN(len(candidates))
		idx := candidates[j]
		candidates[j] = candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]

		picked = append(picked, idx)
		total += sizes[idx]
	}
	return picked
}

// Filter applies the limiter's policy to a list of sample sizes and returns
// the indices to train on.
//
// When the requested count equals len(sizes), or the limiter was created
// WithAllSamples, every index is returned in order and the per-file limit is
// not applied.
func (l *Limiter) Filter(sizes []uint64) ([]int, error) {
	if len(sizes) == 0 {
		return nil, ErrNoSamples
	}

	if l.all || l.numSamples == len(sizes) {
		all := make([]int, len(sizes))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	var stop StopFunc
	if l.numSamples > 0 {
		n := l.numSamples
		stop = func(_ uint64, count int) bool { return count == n }
	} else {
		var budget uint64
		if l.maxTotalSize > l.maxFileSize {
			budget = l.maxTotalSize - l.maxFileSize
		}
		stop = func(total uint64, _ int) bool { return total > budget }
	}

	picked := l.Pick(sizes, stop)
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrAllSamplesTooLarge, humanize.IBytes(l.maxFileSize))
	}
	return picked, nil
}
