// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs a handler writing to stdout as the default logger.
func Setup(level string, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. format is "json" or anything else for
// text output.
func New(w io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithRound tags ctx with the id of a build flush or merge round.
func WithRound(ctx context.Context, roundID string) context.Context {
	return context.WithValue(ctx, contextKey{}, roundID)
}

// FromContext returns the default logger, tagged with the round id carried
// by ctx if there is one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if roundID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("round_id", roundID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
