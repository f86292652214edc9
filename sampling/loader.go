package sampling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/hupe1980/colcluster/blobstore"
	"github.com/hupe1980/colcluster/resource"
	"github.com/hupe1980/colcluster/stream"
	"golang.org/x/sync/errgroup"
)

// Loaded is a decoded training set.
type Loaded struct {
	Samples []stream.MultiInput
	// Names holds the blob name of each sample, in the same order.
	Names []string
	// Available is the number of blobs found under the prefix.
	Available int
	Bytes     uint64
}

// Loader reads and decodes samples from a blob store.
type Loader struct {
	store       blobstore.Store
	limiter     *Limiter
	rc          *resource.Controller
	logger      *slog.Logger
	maxAttempts uint64
	newBackOff  func() backoff.BackOff
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithController bounds memory, parallel reads and throughput.
func WithController(rc *resource.Controller) LoaderOption {
	return func(l *Loader) {
		l.rc = rc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithReadAttempts bounds how often a failing blob read is tried.
func WithReadAttempts(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxAttempts = uint64(n)
		}
	}
}

// WithReadBackOff replaces the delay policy between read attempts.
func WithReadBackOff(fn func() backoff.BackOff) LoaderOption {
	return func(l *Loader) {
		l.newBackOff = fn
	}
}

// NewLoader creates a Loader. A nil limiter uses the default limits.
func NewLoader(store blobstore.Store, limiter *Limiter, opts ...LoaderOption) *Loader {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	l := &Loader{
		store:       store,
		limiter:     limiter,
		maxAttempts: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rc == nil {
		l.rc = resource.NewController(resource.Config{})
	}
	return l
}

// Load lists prefix, picks a subset with the limiter and decodes it.
// Samples are returned in pick order.
func (l *Loader) Load(ctx context.Context, prefix string) (*Loaded, error) {
	names, err := l.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("sampling: list %q: %w", prefix, err)
	}
	names = sampleNames(names)

	sizes, err := l.sizes(ctx, names)
	if err != nil {
		return nil, err
	}

	limiter := l.limiter
	if n := limiter.NumSamples(); !limiter.all && n > len(names) && len(names) > 0 {
		l.warn(ctx, "more samples requested than available, using all samples",
			"requested", n, "available", len(names))
		limiter = NewLimiter(limiter.maxTotalSize, limiter.maxFileSize,
			WithNumSamples(len(names)), WithSeed(limiter.seed))
	}

	picked, err := limiter.Filter(sizes)
	if err != nil {
		return nil, err
	}

	out := &Loaded{
		Samples:   make([]stream.MultiInput, len(picked)),
		Names:     make([]string, len(picked)),
		Available: len(names),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range picked {
		out.Names[i] = names[idx]
		out.Bytes += sizes[idx]
		g.Go(func() error {
			sample, err := l.loadOne(gctx, names[idx], sizes[idx])
			if err != nil {
				return err
			}
			out.Samples[i] = sample
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if l.logger != nil {
		l.logger.InfoContext(ctx, "samples loaded",
			"picked", len(picked),
			"available", len(names),
			"bytes", humanize.IBytes(out.Bytes))
	}
	return out, nil
}

// sizes stats every blob in parallel.
func (l *Loader) sizes(ctx context.Context, names []string) ([]uint64, error) {
	sizes := make([]uint64, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(l.rc.Config().MaxConcurrentReads))
	for i, name := range names {
		g.Go(func() error {
			return l.retry(gctx, name, func() error {
				b, err := l.store.Open(gctx, name)
				if err != nil {
					return err
				}
				sizes[i] = uint64(b.Size())
				return b.Close()
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sizes, nil
}

func (l *Loader) loadOne(ctx context.Context, name string, size uint64) (stream.MultiInput, error) {
	if err := l.rc.AcquireRead(ctx); err != nil {
		return nil, err
	}
	defer l.rc.ReleaseRead()

	if err := l.rc.AcquireMemory(ctx, int64(size)); err != nil {
		return nil, err
	}
	defer l.rc.ReleaseMemory(int64(size))

	var data []byte
	err := l.retry(ctx, name, func() error {
		b, err := l.store.Open(ctx, name)
		if err != nil {
			return err
		}
		defer b.Close()

		data, err = blobstore.ReadAll(ctx, resource.Throttle(b, l.rc))
		return err
	})
	if err != nil {
		return nil, err
	}

	sample, err := stream.DecodeSample(data)
	if err != nil {
		return nil, fmt.Errorf("sampling: %s: %w", name, err)
	}
	return sample, nil
}

// retry runs op until it succeeds, fails permanently or runs out of
// attempts. Missing blobs and cancellation are never retried.
func (l *Loader) retry(ctx context.Context, name string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, blobstore.ErrNotFound), ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		if uint64(attempt) < l.maxAttempts {
			l.warn(ctx, "blob read failed, retrying", "blob", name, "attempt", attempt, "error", err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(l.newBackOff(), l.maxAttempts-1), ctx)
	if err := backoff.Retry(wrapped, b); err != nil {
		return fmt.Errorf("sampling: read %s: %w", name, err)
	}
	return nil
}

func (l *Loader) warn(ctx context.Context, msg string, args ...any) {
	if l.logger != nil {
		l.logger.WarnContext(ctx, msg, args...)
	}
}

// sampleNames keeps the blobs that look like samples. Published configs and
// the CURRENT pointer may live in the same store.
func sampleNames(names []string) []string {
	out := names[:0:0]
	for _, n := range names {
		if strings.HasSuffix(n, stream.SampleExt) {
			out = append(out, n)
		}
	}
	return out
}
