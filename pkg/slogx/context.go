package slogx

import (
	"context"
	"log/slog"
	"slices"
)

type (
	loggerKey struct{}
	attrsKey  struct{}
)

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger carried by ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithAttrs adds key/value pairs that Transport puts on every request it
// logs under ctx. They are resolved against whichever logger does the
// logging, so they can be set before loggers are configured.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	return context.WithValue(ctx, attrsKey{}, append(slices.Clip(Attrs(ctx)), args...))
}

// Attrs returns the pairs added with WithAttrs.
func Attrs(ctx context.Context) []any {
	attrs, _ := ctx.Value(attrsKey{}).([]any)
	return attrs
}
