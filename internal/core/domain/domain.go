package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// OnlineThreshold is how long a last-seen heartbeat keeps a user online.
	// It is more than twice HeartbeatInterval so one missed beat does not flap.
	OnlineThreshold   = 60 * time.Second
	HeartbeatInterval = 25 * time.Second

	MaxMessageBodyLength = 4000
)

// User is the identity fact read from the account service. The chat core never mutates it.
type User struct {
	ID        string
	Name      string
	Image     *string
	IsActive  bool
	IsBlocked bool
}

// Conversation is an unordered pair of users stored with UserOneID <= UserTwoID.
type Conversation struct {
	ID            string
	UserOneID     string
	UserTwoID     string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

func NewConversation(userAID, userBID string, now time.Time) *Conversation {
	one, two := NormalizePair(userAID, userBID)
	return &Conversation{
		ID:            uuid.NewString(),
		UserOneID:     one,
		UserTwoID:     two,
		LastMessageAt: now,
		CreatedAt:     now,
	}
}

func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.UserOneID == userID || c.UserTwoID == userID)
}

// OtherUserID returns the participant that is not userID.
func (c Conversation) OtherUserID(userID string) string {
	if c.UserOneID == userID {
		return c.UserTwoID
	}
	return c.UserOneID
}

func (c Conversation) ParticipantIDs() []string {
	return []string{c.UserOneID, c.UserTwoID}
}

// Message is append-only and never mutated after creation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Body           string
	CreatedAt      time.Time
}

// ReadCursor is the per (conversation, user) read watermark. LastReadAt is nil until
// the user reads or sends for the first time.
type ReadCursor struct {
	ConversationID string
	UserID         string
	LastReadAt     *time.Time
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation Conversation
	LastMessage  *Message
	LastReadAt   *time.Time
	HasUnread    bool
}

// NormalizePair orders two user ids lexicographically so that a pair maps to one conversation.
func NormalizePair(userAID, userBID string) (string, string) {
	if strings.Compare(userAID, userBID) <= 0 {
		return userAID, userBID
	}
	return userBID, userAID
}

// HasUnread reports whether userID has not yet read the latest message of a conversation.
func HasUnread(userID string, last *Message, lastReadAt *time.Time) bool {
	if last == nil || last.SenderID == userID {
		return false
	}
	return lastReadAt == nil || lastReadAt.Before(last.CreatedAt)
}

// IsOnline applies the last-seen threshold.
func IsOnline(lastSeenAt *time.Time, now time.Time) bool {
	if lastSeenAt == nil || lastSeenAt.IsZero() {
		return false
	}
	return now.Sub(*lastSeenAt) <= OnlineThreshold
}

// IsUserOnline combines the gateway's live connection signal with the last-seen fallback.
func IsUserOnline(live bool, lastSeenAt *time.Time, now time.Time) bool {
	return live || IsOnline(lastSeenAt, now)
}

// NormalizeMessageBody trims the body and enforces 1..MaxMessageBodyLength characters.
func NormalizeMessageBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	n := utf8.RuneCountInString(body)
	if n == 0 || n > MaxMessageBodyLength {
		return "", ErrInvalidMessageBody
	}
	return body, nil
}
