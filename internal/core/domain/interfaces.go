package domain

import (
	"context"
	"time"
)

// ConversationStore is the persistence contract the messaging core depends on.
// Implementations must make each call atomic.
type ConversationStore interface {
	// UpsertConversation normalizes the pair and returns the single conversation for it,
	// creating it (with empty read cursors for both users) on first use.
	UpsertConversation(ctx context.Context, userAID, userBID string) (*Conversation, error)
	GetConversation(ctx context.Context, convID string) (*Conversation, error)
	// AppendMessage inserts the message, bumps the conversation's last_message_at and moves the
	// sender's read cursor to the message time, all in one transaction. CreatedAt never goes
	// backwards within a conversation.
	AppendMessage(ctx context.Context, convID, senderID, body string) (*Message, error)
	// ListMessages returns messages ascending by created_at then id, optionally strictly after a time.
	ListMessages(ctx context.Context, convID string, after *time.Time, limit int) ([]Message, error)
	// MarkRead upserts the read cursor to max(existing, at) and returns the stored value.
	MarkRead(ctx context.Context, convID, userID string, at time.Time) (time.Time, error)
	// ListConversationsForUser orders by last_message_at descending and fills HasUnread.
	ListConversationsForUser(ctx context.Context, userID string, limit int) ([]ConversationSummary, error)
	UnreadConversationCount(ctx context.Context, userID string) (int, error)
}

// UserDirectory reads identities owned by the account service.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]User, error)
}
