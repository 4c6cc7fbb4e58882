package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// WithRequestID records the request id. Loggers stored on the returned context carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext stores log as the request-scoped logger, tagged with the request id when
// ctx has one.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	if id := RequestIDFromContext(ctx); id != "" {
		log = log.With(RequestID(id))
	}
	return context.WithValue(ctx, loggerKey, log)
}

// WithUser tags the request-scoped logger with the authenticated caller.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, loggerKey, FromContext(ctx).With(User(userID)))
}

func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
