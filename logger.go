package nearlsh

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger is the structured logger of an Engine. Field names are shared by
// every engine so that logs of several engines can be joined.
type Logger struct {
	*slog.Logger
}

// NewLogger returns a Logger writing to h. A nil handler logs text at
// info level to stderr.
func NewLogger(h slog.Handler) *Logger {
	if h == nil {
		h = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Logger{Logger: slog.New(h)}
}

// NewJSONLogger returns a Logger writing JSON lines at level or above to
// stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger returns a Logger writing logfmt text at level or above to
// stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger returns a Logger that drops everything.
func NoopLogger() *Logger { return NewLogger(slog.DiscardHandler) }

// WithHash tags records with a hash name.
func (l *Logger) WithHash(name string) *Logger { return &Logger{l.With("hash", name)} }

// WithDimension tags records with the engine dimension.
func (l *Logger) WithDimension(dim int) *Logger { return &Logger{l.With("dimension", dim)} }

func (l *Logger) failed(ctx context.Context, op string, err error, attrs ...any) {
	l.ErrorContext(ctx, op+" failed", append(attrs, "error", err)...)
}

// LogStore records a store of count vectors. Batches log at info.
func (l *Logger) LogStore(ctx context.Context, count int, err error) {
	switch {
	case err != nil:
		l.failed(ctx, "store", err, "count", count)
	case count > 1:
		l.InfoContext(ctx, "batch store completed", "count", count)
	default:
		l.DebugContext(ctx, "store completed", "count", count)
	}
}

// LogQuery records a neighbour query.
func (l *Logger) LogQuery(ctx context.Context, candidates, results int, err error) {
	if err != nil {
		l.failed(ctx, "query", err, "candidates", candidates)
		return
	}
	l.DebugContext(ctx, "query completed", "candidates", candidates, "results", results)
}

// LogCandidateCap warns that a query collected more candidates than the
// configured maximum.
func (l *Logger) LogCandidateCap(ctx context.Context, found, limit int) {
	l.WarnContext(ctx, "candidate list truncated", "found", found, "limit", limit)
}

func (l *Logger) LogDelete(ctx context.Context, payload string, removed int, err error) {
	if err != nil {
		l.failed(ctx, "delete", err, "payload", payload)
		return
	}
	l.DebugContext(ctx, "delete completed", "payload", payload, "removed", removed)
}

func (l *Logger) LogIndexBuild(ctx context.Context, hash string, took time.Duration, err error) {
	if err != nil {
		l.failed(ctx, "permuted index build", err, "hash", hash)
		return
	}
	l.InfoContext(ctx, "permuted index built", "hash", hash, "took", took)
}

func (l *Logger) LogSnapshot(ctx context.Context, name string, err error) {
	if err != nil {
		l.failed(ctx, "snapshot", err, "name", name)
		return
	}
	l.InfoContext(ctx, "snapshot saved", "name", name)
}
