package voxfuse

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/voxfuse/model"
)

// Logger wraps slog.Logger with voxfuse-specific helpers.
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
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithFrame adds a frame sequence number.
func (l *Logger) WithFrame(seq uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("frame", seq),
	}
}

// WithBlock adds a block coordinate.
func (l *Logger) WithBlock(c model.BlockCoord) *Logger {
	return &Logger{
		Logger: l.Logger.With("block", c.String()),
	}
}

// LogFrame logs the outcome of one frame. Capacity failures are warnings.
func (l *Logger) LogFrame(ctx context.Context, seq uint64, stats FrameStats, err error) {
	fl := l.WithFrame(seq)
	switch {
	case err != nil:
		fl.ErrorContext(ctx, "frame failed",
			"error", err,
		)
	case stats.Failed() > 0:
		fl.WarnContext(ctx, "frame completed with allocation failures",
			"requests", stats.Requests,
			"allocated", stats.Allocated,
			"failed_no_blocks", stats.FailedNoBlocks,
			"failed_no_excess", stats.FailedNoExcess,
			"dropped", stats.DroppedRequests,
		)
	default:
		fl.DebugContext(ctx, "frame completed",
			"allocated", stats.Allocated,
			"visible", stats.VisibleBlocks,
			"voxels", stats.IntegratedVoxels,
			"duration", stats.Duration,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"name", name,
			"bytes", bytes,
		)
	}
}
