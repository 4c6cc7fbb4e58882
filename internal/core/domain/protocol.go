package domain

import (
	"encoding/json"
	"time"
)

// Client-facing event names (gateway -> client).
const (
	EventMessageCreated     = "message:created"
	EventConversationUpsert = "conversation:upsert"
	EventConversationRead   = "conversation:read"
	EventPresenceChanged    = "presence:changed"
	EventPresenceSnapshot   = "presence:snapshot"

	// client -> gateway
	EventPresenceSnapshotRequest = "presence:snapshot:request"
)

// TimeLayout renders timestamps the way browsers do (millisecond ISO-8601, UTC).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout and any RFC3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Frame is the envelope of every WebSocket text message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// SenderPayload is the denormalized sender of a rendered message.
type SenderPayload struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

// MessagePayload is a rendered message as sent to clients.
type MessagePayload struct {
	ID        string         `json:"id"`
	Body      string         `json:"body"`
	CreatedAt string         `json:"createdAt"`
	SenderID  string         `json:"senderId"`
	Sender    *SenderPayload `json:"sender,omitempty"`
}

func NewMessagePayload(m Message, sender *User) MessagePayload {
	p := MessagePayload{
		ID:        m.ID,
		Body:      m.Body,
		CreatedAt: FormatTime(m.CreatedAt),
		SenderID:  m.SenderID,
	}
	if sender != nil {
		p.Sender = &SenderPayload{ID: sender.ID, Name: sender.Name, Image: sender.Image}
	}
	return p
}

type MessageCreatedPayload struct {
	ConversationID string         `json:"conversationId"`
	Message        MessagePayload `json:"message"`
}

type ConversationUpsertPayload struct {
	ConversationID string `json:"conversationId"`
}

type ConversationReadPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	ReadAt         string `json:"readAt"`
}

type PresenceChangedPayload struct {
	UserID     string `json:"userId"`
	IsOnline   bool   `json:"isOnline"`
	LastSeenAt string `json:"lastSeenAt"`
}

type PresenceSnapshotPayload struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
	EmittedAt     string   `json:"emittedAt"`
}

// ErrorResponse is the HTTP error body. Retry is false when the client must not reconnect
// with the same credentials.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Retry   *bool  `json:"retry,omitempty"`
}
