package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"marketchat/internal/core/domain"
	"marketchat/internal/platform/logger"
	"marketchat/pkg/logging"
)

const (
	// InternalSecretHeader carries the publish bridge's shared secret.
	InternalSecretHeader = "X-Chat-Internal-Secret"
	// RetryHeader is "false" on authentication failures the client must not retry as-is.
	RetryHeader = "X-Chat-Retry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.ErrorResponse{OK: false, Message: message})
}

// writeNoRetry rejects a connection attempt with a machine-readable "do not retry" signal.
func writeNoRetry(w http.ResponseWriter, status int, message string) {
	retry := false
	w.Header().Set(RetryHeader, "false")
	writeJSON(w, status, domain.ErrorResponse{OK: false, Message: message, Retry: &retry})
}

// statusFor maps domain errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "Unauthorized."
	case errors.Is(err, domain.ErrInvalidMessageBody):
		return http.StatusBadRequest, "Message must be between 1 and 4000 characters."
	case errors.Is(err, domain.ErrInvalidConversationID):
		return http.StatusBadRequest, "Invalid conversation id."
	case errors.Is(err, domain.ErrInvalidUserID):
		return http.StatusBadRequest, "Invalid recipient."
	case errors.Is(err, domain.ErrSelfConversation):
		return http.StatusBadRequest, "Cannot message yourself."
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrRecipientUnavailable):
		return http.StatusBadRequest, "Recipient is unavailable."
	case errors.Is(err, domain.ErrInvalidEvent):
		return http.StatusBadRequest, "Invalid body."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden."
	case errors.Is(err, domain.ErrConversationNotFound):
		return http.StatusNotFound, "Conversation not found."
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many messages. Slow down."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}

func writeDomainError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status, message := statusFor(err)
	log := logger.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(ctx, op+" - failed", logging.Err(err))
	} else {
		log.InfoContext(ctx, op+" - rejected", logging.Err(err), "status", status)
	}
	writeError(w, status, message)
}
