package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"marketchat/internal/core/domain"
	"marketchat/internal/core/services"
	"marketchat/pkg/middleware"
)

const maxRequestBytes = 64 * 1024

// MessagesHandler serves the authenticated /api/messages routes. The caller is the user
// id AuthMiddleware put in the request context.
type MessagesHandler struct {
	chat services.IChatService
}

func NewMessagesHandler(chat services.IChatService) *MessagesHandler {
	return &MessagesHandler{chat: chat}
}

func (h *MessagesHandler) WSToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	view, err := h.chat.IssueWSToken(r.Context(), userID)
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - ws token", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *MessagesHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	convs, err := h.chat.ListConversations(r.Context(), userID)
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - list conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (h *MessagesHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in struct {
		RecipientUserID string `json:"recipientUserId"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	convID, err := h.chat.StartConversation(r.Context(), userID, in.RecipientUserID)
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - start conversation", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"conversationId": convID})
}

func (h *MessagesHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var after *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("after")); raw != "" {
		t, err := domain.ParseTime(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid after timestamp.")
			return
		}
		after = &t
	}
	msgs, err := h.chat.ListMessages(r.Context(), userID, r.PathValue("id"), after)
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in struct {
		Body string `json:"body"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	msg, err := h.chat.SendMessage(r.Context(), userID, r.PathValue("id"), in.Body)
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	readAt, err := h.chat.MarkRead(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "readAt": domain.FormatTime(readAt)})
}

func (h *MessagesHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	n, err := h.chat.UnreadCount(r.Context(), userID)
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - unread count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unreadCount": n})
}

func (h *MessagesHandler) Presence(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	at, err := h.chat.Heartbeat(r.Context(), userID)
	if err != nil {
		writeDomainError(r.Context(), w, "messages handler - presence", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "lastSeenAt": domain.FormatTime(at)})
}

func (h *MessagesHandler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
	}
	return userID, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body.")
		return false
	}
	return true
}
