package colcluster

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/hupe1980/colcluster/clustering"
	"github.com/hupe1980/colcluster/trainer"
)

// Logger wraps slog.Logger with training-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return newLogger(os.Stderr, level, true)
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return newLogger(os.Stderr, level, false)
}

func newLogger(w io.Writer, level slog.Level, json bool) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
	}
	return &Logger{Logger: slog.New(slog.NewTextHandler(w, opts))}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRunID adds the training run ID to every record.
func (l *Logger) WithRunID(id uuid.UUID) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id.String()),
	}
}

// WithTrainer adds the trainer name to every record.
func (l *Logger) WithTrainer(kind trainer.Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("trainer", kind.String()),
	}
}

// LogTrainingStart logs the start of a training run.
func (l *Logger) LogTrainingStart(ctx context.Context, samples int, bytes uint64, threads int, maxTime time.Duration) {
	args := []any{
		"samples", samples,
		"size", humanize.IBytes(bytes),
		"threads", threads,
	}
	if maxTime > 0 {
		args = append(args, "max_time", maxTime)
	}
	l.InfoContext(ctx, "training started", args...)
}

// LogTrainingDone logs the outcome of a training run.
func (l *Logger) LogTrainingDone(ctx context.Context, res *Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"error", err,
		)
		return
	}
	args := []any{
		"graph", res.GraphID,
		"clusters", len(res.Config.Clusters),
		"duration", res.Duration,
		"candidates", res.Candidates,
	}
	if !res.Cost.IsFailed() {
		args = append(args, "size", humanize.IBytes(res.Cost.CompressedSize))
	}
	if !res.Baseline.IsFailed() && !res.Cost.IsFailed() {
		args = append(args, "improvement_pct", res.Improvement())
	}
	l.InfoContext(ctx, "training completed", args...)
}

// LogIteration logs the end of a search pass.
func (l *Logger) LogIteration(ctx context.Context, n int, best clustering.SizeTimePair) {
	l.DebugContext(ctx, "iteration completed",
		"iteration", n,
		"cost", best.CompressedSize,
	)
}

// LogCandidateBatch logs a batch of costed candidates.
func (l *Logger) LogCandidateBatch(ctx context.Context, n int) {
	l.DebugContext(ctx, "candidates evaluated",
		"count", n,
	)
}

// LogImprovement logs an accepted candidate.
func (l *Logger) LogImprovement(ctx context.Context, before, after clustering.SizeTimePair) {
	l.DebugContext(ctx, "found better config",
		"before", before.CompressedSize,
		"after", after.CompressedSize,
		"saved", before.CompressedSize-after.CompressedSize,
	)
}

// LogEarlyStop logs that the time budget ran out.
func (l *Logger) LogEarlyStop(ctx context.Context, elapsed, maxTime time.Duration) {
	l.InfoContext(ctx, "time budget exhausted, keeping best config so far",
		"elapsed", elapsed.Round(time.Millisecond),
		"max_time", maxTime,
	)
}

// LogConfig logs the human-readable dump of a trained config.
func (l *Logger) LogConfig(ctx context.Context, cfg *clustering.Config) {
	l.InfoContext(ctx, "trained clustering config",
		"clusters", len(cfg.Clusters),
		"type_defaults", len(cfg.TypeDefaults),
		"fingerprint", cfg.Fingerprint(),
		"config", cfg.String(),
	)
}
