package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchat/internal/core/domain"
	"marketchat/internal/core/events"
)

type sinkFunc func(ctx context.Context, ev events.Event) error

func (f sinkFunc) Publish(ctx context.Context, ev events.Event) error { return f(ctx, ev) }

func postPublish(t *testing.T, h *PublishHandler, secret, body string) (*httptest.ResponseRecorder, domain.ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/publish", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(InternalSecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.Handler(rec, req)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestPublishHandlerRequiresSecret(t *testing.T) {
	called := false
	h := NewPublishHandler("bridge-secret", sinkFunc(func(context.Context, events.Event) error {
		called = true
		return nil
	}), 0)

	for _, secret := range []string{"", "bridge-secreT", "bridge-secret-longer"} {
		rec, resp := postPublish(t, h, secret, `{"type":"presence-changed","userId":"u1"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, resp.OK)
		require.Equal(t, "Unauthorized.", resp.Message)
	}
	require.False(t, called)
}

func TestPublishHandlerRejectsInvalidPayloads(t *testing.T) {
	h := NewPublishHandler("bridge-secret", sinkFunc(func(context.Context, events.Event) error {
		t.Fatal("sink must not be called for rejected payloads")
		return nil
	}), 0)

	cases := []struct {
		body    string
		message string
	}{
		{`not json`, "Invalid body."},
		{`{"type":"something-else"}`, "Unknown event type."},
		{`{"type":"message-created","conversationId":"c1","participantUserIds":["u1"],"message":{"id":"m1","body":"   ","createdAt":"x","senderId":"u1"}}`, "Invalid message-created payload."},
		{`{"type":"conversation-read","conversationId":"c1","participantUserIds":[],"userId":"u1"}`, "Invalid conversation-read payload."},
	}
	for _, tc := range cases {
		rec, resp := postPublish(t, h, "bridge-secret", tc.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
		require.Equal(t, tc.message, resp.Message)
	}
}

func TestPublishHandlerDeliversToSink(t *testing.T) {
	var got events.Event
	h := NewPublishHandler("bridge-secret", sinkFunc(func(_ context.Context, ev events.Event) error {
		got = ev
		return nil
	}), 0)

	rec, resp := postPublish(t, h, "bridge-secret",
		`{"type":"conversation-upsert","conversationId":" c1 ","participantUserIds":["u1", "", 7, "u2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.OK)
	require.Equal(t, events.ConversationUpsert{ConversationID: "c1", ParticipantUserIDs: []string{"u1", "u2"}}, got)
}

func TestPublishHandlerSinkFailure(t *testing.T) {
	h := NewPublishHandler("bridge-secret", sinkFunc(func(context.Context, events.Event) error {
		return errors.New("boom")
	}), 0)

	rec, resp := postPublish(t, h, "bridge-secret", `{"type":"presence-changed","userId":"u1","isOnline":true}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, resp.OK)
}

func TestPublishHandlerBodyLimit(t *testing.T) {
	h := NewPublishHandler("bridge-secret", sinkFunc(func(context.Context, events.Event) error { return nil }), 16)

	rec, _ := postPublish(t, h, "bridge-secret", `{"type":"presence-changed","userId":"u1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
