package contracts

import (
	"context"

	"marketchat/internal/core/events"
)

// PublishResult is the outcome of a best-effort realtime publish. Callers may discard it;
// a failed publish never fails the write that triggered it.
type PublishResult struct {
	Delivered bool
	Err       error
}

func (r PublishResult) OK() bool { return r.Delivered && r.Err == nil }

// EventPublisher pushes an event into the gateway's internal publish bridge.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) PublishResult
}
