package log

import (
	"context"

	"github.com/rs/zerolog"
)

// loggerKey is the context key request-scoped loggers travel under.
type loggerKey struct{}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Ctx returns the logger carried by ctx. A context without one falls back
// to the global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return L()
}
