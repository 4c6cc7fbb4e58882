package events

import (
	"encoding/json"
	"strings"
	"time"

	"marketchat/internal/core/domain"
)

// DecodeError describes why a publish body was rejected. It matches domain.ErrInvalidEvent.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string { return e.Message }

func (e *DecodeError) Unwrap() error { return domain.ErrInvalidEvent }

func invalidPayload(t Type) error {
	return &DecodeError{Message: "Invalid " + string(t) + " payload."}
}

type wireEvent struct {
	Type               Type                   `json:"type"`
	ConversationID     string                 `json:"conversationId,omitempty"`
	ParticipantUserIDs []string               `json:"participantUserIds,omitempty"`
	Message            *domain.MessagePayload `json:"message,omitempty"`
	UserID             string                 `json:"userId,omitempty"`
	ReadAt             string                 `json:"readAt,omitempty"`
	IsOnline           *bool                  `json:"isOnline,omitempty"`
	LastSeenAt         string                 `json:"lastSeenAt,omitempty"`
}

func (e MessageCreated) wire() wireEvent {
	msg := e.Message
	return wireEvent{Type: TypeMessageCreated, ConversationID: e.ConversationID, ParticipantUserIDs: e.ParticipantUserIDs, Message: &msg}
}

func (e ConversationUpsert) wire() wireEvent {
	return wireEvent{Type: TypeConversationUpsert, ConversationID: e.ConversationID, ParticipantUserIDs: e.ParticipantUserIDs}
}

func (e ConversationRead) wire() wireEvent {
	return wireEvent{Type: TypeConversationRead, ConversationID: e.ConversationID, ParticipantUserIDs: e.ParticipantUserIDs, UserID: e.UserID, ReadAt: e.ReadAt}
}

func (e PresenceChanged) wire() wireEvent {
	online := e.IsOnline
	return wireEvent{Type: TypePresenceChanged, UserID: e.UserID, IsOnline: &online, LastSeenAt: e.LastSeenAt}
}

// Encode renders ev as a publish body with its type discriminator.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev.wire())
}

// Decode validates and sanitizes a publish body. Defaults for missing timestamps use the current time.
func Decode(raw []byte) (Event, error) {
	return DecodeAt(raw, time.Now())
}

func DecodeAt(raw []byte, now time.Time) (Event, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return nil, &DecodeError{Message: "Invalid body."}
	}

	kind, _ := body["type"].(string)
	participants := sanitizeIDs(body["participantUserIds"])
	stamp := domain.FormatTime(now)

	switch Type(kind) {
	case TypeMessageCreated:
		convID := trimmed(body["conversationId"])
		msg, ok := sanitizeMessage(body["message"])
		if convID == "" || !ok || len(participants) == 0 {
			return nil, invalidPayload(TypeMessageCreated)
		}
		return MessageCreated{ConversationID: convID, ParticipantUserIDs: participants, Message: msg}, nil

	case TypeConversationUpsert:
		convID := trimmed(body["conversationId"])
		if convID == "" || len(participants) == 0 {
			return nil, invalidPayload(TypeConversationUpsert)
		}
		return ConversationUpsert{ConversationID: convID, ParticipantUserIDs: participants}, nil

	case TypeConversationRead:
		convID := trimmed(body["conversationId"])
		userID := trimmed(body["userId"])
		if convID == "" || userID == "" || len(participants) == 0 {
			return nil, invalidPayload(TypeConversationRead)
		}
		return ConversationRead{
			ConversationID:     convID,
			ParticipantUserIDs: participants,
			UserID:             userID,
			ReadAt:             nonEmptyOr(body["readAt"], stamp),
		}, nil

	case TypePresenceChanged:
		userID := trimmed(body["userId"])
		if userID == "" {
			return nil, invalidPayload(TypePresenceChanged)
		}
		return PresenceChanged{
			UserID:     userID,
			IsOnline:   truthy(body["isOnline"]),
			LastSeenAt: nonEmptyOr(body["lastSeenAt"], stamp),
		}, nil
	}
	return nil, &DecodeError{Message: "Unknown event type."}
}

func trimmed(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// nonEmptyOr returns v untouched when it is a non-blank string.
func nonEmptyOr(v any, fallback string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func sanitizeIDs(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := trimmed(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sanitizeMessage(v any) (domain.MessagePayload, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.MessagePayload{}, false
	}
	id := trimmed(m["id"])
	senderID := trimmed(m["senderId"])
	body, _ := m["body"].(string)
	createdAt, _ := m["createdAt"].(string)
	if id == "" || senderID == "" || strings.TrimSpace(body) == "" || strings.TrimSpace(createdAt) == "" {
		return domain.MessagePayload{}, false
	}

	out := domain.MessagePayload{ID: id, Body: body, CreatedAt: createdAt, SenderID: senderID}
	if s, ok := m["sender"].(map[string]any); ok {
		sender := &domain.SenderPayload{ID: trimmed(s["id"]), Name: nonEmptyOr(s["name"], "User")}
		if img, ok := s["image"].(string); ok && strings.TrimSpace(img) != "" {
			sender.Image = &img
		}
		out.Sender = sender
	}
	return out, true
}

// truthy mirrors loose boolean coercion: non-zero numbers and non-empty strings are true.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
