package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchat/pkg/logging"
)

func TestRequestLoggerTagsRequestAndCaller(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("handler ran")
		w.WriteHeader(http.StatusNoContent)
	})
	h := Chain(AuthMiddleware(staticValidator{"good": "u1"})(inner), RequestID, RequestLogger(log))

	req := httptest.NewRequest(http.MethodGet, "/api/messages/unread-count", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var handlerLine, doneLine map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &handlerLine))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doneLine))

	require.Equal(t, "handler ran", handlerLine["msg"])
	require.Equal(t, "req-42", handlerLine["request_id"])
	require.Equal(t, "u1", handlerLine["user_id"])

	require.Equal(t, "request completed", doneLine["msg"])
	require.Equal(t, "req-42", doneLine["request_id"])
	require.EqualValues(t, http.StatusNoContent, doneLine["status"])
}
