package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"marketchat/pkg/logging"
)

// FromContext returns the request-scoped logger with the active span's ids attached.
func FromContext(ctx context.Context) *slog.Logger {
	l := logging.FromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		l = l.With(logging.TraceID(sc.TraceID().String()), logging.SpanID(sc.SpanID().String()))
	}
	return l
}
