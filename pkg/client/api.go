package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketchat/internal/core/domain"
)

// APIError is a non-2xx answer from the messaging API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// API is a small client for the /api/messages routes, authenticated with a bearer session
// token.
type API struct {
	base  string
	token string
	http  *http.Client
}

func NewAPI(baseURL, sessionToken string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{base: strings.TrimRight(baseURL, "/"), token: sessionToken, http: hc}
}

// TokenSource adapts WSToken for Session. An API 401 means the end-user session itself is
// gone, so it is reported as ErrSessionExpired.
func (a *API) TokenSource() TokenSource {
	return func(ctx context.Context) (string, error) {
		view, err := a.WSToken(ctx)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return "", ErrSessionExpired
		}
		return view.Token, err
	}
}

func (a *API) WSToken(ctx context.Context) (domain.WSTokenView, error) {
	var out domain.WSTokenView
	err := a.do(ctx, http.MethodGet, "/api/messages/ws-token", nil, &out)
	return out, err
}

func (a *API) ListConversations(ctx context.Context) ([]domain.ConversationView, error) {
	var out struct {
		Conversations []domain.ConversationView `json:"conversations"`
	}
	err := a.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &out)
	return out.Conversations, err
}

func (a *API) StartConversation(ctx context.Context, recipientUserID string) (string, error) {
	var out struct {
		ConversationID string `json:"conversationId"`
	}
	err := a.do(ctx, http.MethodPost, "/api/messages/conversations",
		map[string]string{"recipientUserId": recipientUserID}, &out)
	return out.ConversationID, err
}

// ListMessages fetches the latest page, or only messages newer than after when it is set.
func (a *API) ListMessages(ctx context.Context, conversationID string, after *time.Time) ([]domain.MessagePayload, error) {
	path := "/api/messages/conversations/" + url.PathEscape(conversationID) + "/messages"
	if after != nil {
		path += "?after=" + url.QueryEscape(domain.FormatTime(*after))
	}
	var out struct {
		Messages []domain.MessagePayload `json:"messages"`
	}
	err := a.do(ctx, http.MethodGet, path, nil, &out)
	return out.Messages, err
}

func (a *API) SendMessage(ctx context.Context, conversationID, body string) (domain.MessagePayload, error) {
	var out struct {
		Message domain.MessagePayload `json:"message"`
	}
	err := a.do(ctx, http.MethodPost, "/api/messages/conversations/"+url.PathEscape(conversationID)+"/messages",
		map[string]string{"body": body}, &out)
	return out.Message, err
}

func (a *API) MarkRead(ctx context.Context, conversationID string) error {
	return a.do(ctx, http.MethodPost, "/api/messages/conversations/"+url.PathEscape(conversationID)+"/read", nil, nil)
}

func (a *API) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unreadCount"`
	}
	err := a.do(ctx, http.MethodGet, "/api/messages/unread", nil, &out)
	return out.UnreadCount, err
}

// Heartbeat is the beat function for RunHeartbeat.
func (a *API) Heartbeat(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/messages/presence", nil, nil)
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e domain.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
