package weave

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

var (
	slogCtxKey = ctxKey{}

	discardLogger = slog.New(slog.DiscardHandler)
)

func logger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(slogCtxKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return discardLogger
}

// LoggingContext returns a copy of ctx carrying logger. Renders using the
// returned context log fragment reads and warnings to it; without one they
// don't log at all.
func LoggingContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, slogCtxKey, logger)
}

// logWarning logs w for page. UnrestoredMask is an error in the renderer, so
// it's logged louder than the warnings caused by page content.
func logWarning(ctx context.Context, page string, w Warning) {
	level := slog.LevelWarn
	msg := "render warning"
	if w.Kind == UnrestoredMask {
		level = slog.LevelError
		msg = "internal render error"
	}
	logger(ctx).Log(ctx, level, msg,
		slog.String("page", page),
		slog.String("kind", string(w.Kind)),
		slog.String("name", w.Name),
		slog.String("scope", w.Scope),
	)
}
