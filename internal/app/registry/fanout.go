package registry

import (
	"context"
	"fmt"
	"log/slog"

	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
	"marketchat/internal/core/events"
	"marketchat/pkg/logging"
)

// Fanout turns publish events into client frames and addresses them to user rooms.
type Fanout struct {
	rooms contracts.Registry
	log   *slog.Logger
}

var _ events.Handler = (*Fanout)(nil)

func NewFanout(rooms contracts.Registry, log *slog.Logger) *Fanout {
	if log == nil {
		log = slog.Default()
	}
	return &Fanout{rooms: rooms, log: log}
}

// Publish dispatches ev to its handler.
func (f *Fanout) Publish(ctx context.Context, ev events.Event) error {
	return ev.Dispatch(ctx, f)
}

// MessageCreated emits message:created and then conversation:upsert to every participant.
func (f *Fanout) MessageCreated(ctx context.Context, ev events.MessageCreated) error {
	msgFrame, err := domain.NewFrame(domain.EventMessageCreated, ev.Payload())
	if err != nil {
		return fmt.Errorf("encode message frame: %w", err)
	}
	upsertFrame, err := domain.NewFrame(domain.EventConversationUpsert, ev.UpsertPayload())
	if err != nil {
		return fmt.Errorf("encode upsert frame: %w", err)
	}
	n := f.rooms.EmitToUsers(ctx, ev.ParticipantUserIDs, msgFrame)
	f.rooms.EmitToUsers(ctx, ev.ParticipantUserIDs, upsertFrame)
	f.log.DebugContext(ctx, "fanout - message created - emitted",
		logging.Conversation(ev.ConversationID), logging.Message(ev.Message.ID), slog.Int("connections", n))
	return nil
}

func (f *Fanout) ConversationUpsert(ctx context.Context, ev events.ConversationUpsert) error {
	return f.emit(ctx, domain.EventConversationUpsert, ev.ParticipantUserIDs, ev.Payload())
}

func (f *Fanout) ConversationRead(ctx context.Context, ev events.ConversationRead) error {
	return f.emit(ctx, domain.EventConversationRead, ev.ParticipantUserIDs, ev.Payload())
}

// PresenceChanged is global: any connected client may show any user's presence.
func (f *Fanout) PresenceChanged(ctx context.Context, ev events.PresenceChanged) error {
	frame, err := domain.NewFrame(domain.EventPresenceChanged, ev.Payload())
	if err != nil {
		return fmt.Errorf("encode presence frame: %w", err)
	}
	f.rooms.Broadcast(ctx, frame)
	return nil
}

func (f *Fanout) emit(ctx context.Context, event string, userIDs []string, payload any) error {
	frame, err := domain.NewFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}
	n := f.rooms.EmitToUsers(ctx, userIDs, frame)
	f.log.DebugContext(ctx, "fanout - emit - done", logging.Event(event), slog.Int("connections", n))
	return nil
}
