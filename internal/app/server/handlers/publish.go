package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"marketchat/internal/core/events"
	"marketchat/internal/platform/logger"
	"marketchat/pkg/logging"
)

const defaultMaxPublishBytes = 256 * 1024

// EventSink applies a decoded publish event, e.g. the gateway fan-out.
type EventSink interface {
	Publish(ctx context.Context, ev events.Event) error
}

// PublishHandler is the internal publish bridge. The payload is validated in full before
// anything is emitted, so a rejected request never partially fans out.
type PublishHandler struct {
	secret   []byte
	sink     EventSink
	maxBytes int64
}

func NewPublishHandler(secret string, sink EventSink, maxBytes int64) *PublishHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxPublishBytes
	}
	return &PublishHandler{secret: []byte(secret), sink: sink, maxBytes: maxBytes}
}

func (h *PublishHandler) Handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if subtle.ConstantTimeCompare([]byte(r.Header.Get(InternalSecretHeader)), h.secret) != 1 {
		log.WarnContext(ctx, "publish handler - secret check - unauthorized")
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		log.InfoContext(ctx, "publish handler - read body - failed", logging.Err(err))
		writeError(w, http.StatusBadRequest, "Invalid body.")
		return
	}

	ev, err := events.Decode(raw)
	if err != nil {
		message := "Invalid body."
		var de *events.DecodeError
		if errors.As(err, &de) {
			message = de.Message
		}
		log.InfoContext(ctx, "publish handler - decode - rejected", logging.Err(err))
		writeError(w, http.StatusBadRequest, message)
		return
	}

	if err := h.sink.Publish(ctx, ev); err != nil {
		log.ErrorContext(ctx, "publish handler - fan out - failed", logging.Event(string(ev.Type())), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Publish failed.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
