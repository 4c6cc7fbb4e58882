// Package events defines the publish events the API tier pushes into the gateway.
//
// The set of variants is closed: every Event dispatches to exactly one Handler method,
// so adding a variant does not compile until every Handler covers it.
package events

import (
	"context"

	"marketchat/internal/core/domain"
)

type Type string

const (
	TypeMessageCreated     Type = "message-created"
	TypeConversationUpsert Type = "conversation-upsert"
	TypeConversationRead   Type = "conversation-read"
	TypePresenceChanged    Type = "presence-changed"
)

type Event interface {
	Type() Type
	Dispatch(ctx context.Context, h Handler) error
	wire() wireEvent
}

type Handler interface {
	MessageCreated(ctx context.Context, ev MessageCreated) error
	ConversationUpsert(ctx context.Context, ev ConversationUpsert) error
	ConversationRead(ctx context.Context, ev ConversationRead) error
	PresenceChanged(ctx context.Context, ev PresenceChanged) error
}

// MessageCreated carries the rendered message and every participant to address.
type MessageCreated struct {
	ConversationID     string
	ParticipantUserIDs []string
	Message            domain.MessagePayload
}

type ConversationUpsert struct {
	ConversationID     string
	ParticipantUserIDs []string
}

type ConversationRead struct {
	ConversationID     string
	ParticipantUserIDs []string
	UserID             string
	ReadAt             string
}

// PresenceChanged is broadcast to every connected client, not to rooms.
type PresenceChanged struct {
	UserID     string
	IsOnline   bool
	LastSeenAt string
}

func (MessageCreated) Type() Type     { return TypeMessageCreated }
func (ConversationUpsert) Type() Type { return TypeConversationUpsert }
func (ConversationRead) Type() Type   { return TypeConversationRead }
func (PresenceChanged) Type() Type    { return TypePresenceChanged }

func (e MessageCreated) Dispatch(ctx context.Context, h Handler) error {
	return h.MessageCreated(ctx, e)
}

func (e ConversationUpsert) Dispatch(ctx context.Context, h Handler) error {
	return h.ConversationUpsert(ctx, e)
}

func (e ConversationRead) Dispatch(ctx context.Context, h Handler) error {
	return h.ConversationRead(ctx, e)
}

func (e PresenceChanged) Dispatch(ctx context.Context, h Handler) error {
	return h.PresenceChanged(ctx, e)
}

// Client-facing payloads for each variant.

func (e MessageCreated) Payload() domain.MessageCreatedPayload {
	return domain.MessageCreatedPayload{ConversationID: e.ConversationID, Message: e.Message}
}

func (e MessageCreated) UpsertPayload() domain.ConversationUpsertPayload {
	return domain.ConversationUpsertPayload{ConversationID: e.ConversationID}
}

func (e ConversationUpsert) Payload() domain.ConversationUpsertPayload {
	return domain.ConversationUpsertPayload{ConversationID: e.ConversationID}
}

func (e ConversationRead) Payload() domain.ConversationReadPayload {
	return domain.ConversationReadPayload{ConversationID: e.ConversationID, UserID: e.UserID, ReadAt: e.ReadAt}
}

func (e PresenceChanged) Payload() domain.PresenceChangedPayload {
	return domain.PresenceChangedPayload{UserID: e.UserID, IsOnline: e.IsOnline, LastSeenAt: e.LastSeenAt}
}
