package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchat/internal/core/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrInvalidToken, http.StatusUnauthorized},
		{domain.ErrInvalidMessageBody, http.StatusBadRequest},
		{domain.ErrInvalidConversationID, http.StatusBadRequest},
		{domain.ErrSelfConversation, http.StatusBadRequest},
		{domain.ErrRecipientUnavailable, http.StatusBadRequest},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("get: %w", domain.ErrConversationNotFound), http.StatusNotFound},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, message := statusFor(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.NotEmpty(t, message)
	}
}

func TestWriteNoRetry(t *testing.T) {
	rec := httptest.NewRecorder()
	writeNoRetry(rec, http.StatusUnauthorized, "Unauthorized.")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "false", rec.Header().Get(RetryHeader))
	require.JSONEq(t, `{"ok":false,"message":"Unauthorized.","retry":false}`, rec.Body.String())
}
