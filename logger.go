package dynamodel

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with helpers for the engine's operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler logs text
// to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger writing JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger writing text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithType adds the entity type to the logger.
func (l *Logger) WithType(typ string) *Logger {
	return &Logger{Logger: l.Logger.With("type", typ)}
}

// LogSave logs the outcome of a save.
func (l *Logger) LogSave(ctx context.Context, key string, puts, deletes int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "save failed", "key", key, "error", err)
	case puts+deletes == 0:
		l.DebugContext(ctx, "nothing to save", "key", key)
	default:
		l.DebugContext(ctx, "save completed",
			"key", key,
			"puts", puts,
			"deletes", deletes,
		)
	}
}

// LogLoad logs the outcome of a get.
func (l *Logger) LogLoad(ctx context.Context, key string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed", "key", key, "error", err)
		return
	}
	l.DebugContext(ctx, "load completed", "key", key, "rows", rows)
}

// LogDelete logs the outcome of a delete.
func (l *Logger) LogDelete(ctx context.Context, key string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed", "key", key, "error", err)
		return
	}
	l.DebugContext(ctx, "delete completed", "key", key, "rows", rows)
}

// LogQuery logs the outcome of a find or count.
func (l *Logger) LogQuery(ctx context.Context, partition string, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed", "partition", partition, "error", err)
		return
	}
	l.DebugContext(ctx, "query completed", "partition", partition, "results", results)
}
