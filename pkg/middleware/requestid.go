package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"marketchat/pkg/logging"
)

const RequestIDHeader = "X-Request-Id"

// RequestID propagates an incoming request id or generates one when absent.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	return logging.RequestIDFromContext(ctx)
}
