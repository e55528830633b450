package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// WithLogger returns a context carrying logger; nil means the default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the context's logger, or the default one.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

// WithRun tags every log line in ctx with the run identity.
func WithRun(ctx context.Context, runID, stage, mode string) context.Context {
	logger := FromContext(ctx).With().
		Str("run_id", runID).
		Str("stage", stage).
		Str("mode", mode).
		Logger()
	return WithLogger(ctx, &logger)
}
