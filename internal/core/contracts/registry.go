package contracts

import "context"

// Registry is the gateway's room table: it maps users to their live connections
// and owns the presence transitions that joining and leaving cause.
type Registry interface {
	// Join adds the client to room user:{id} and to the global set.
	Join(c Client)
	// Leave removes the client. It is safe to call more than once.
	Leave(c Client)
	// EmitToUsers sends frame to every connection of every listed user and reports how many
	// connections it was queued on.
	EmitToUsers(ctx context.Context, userIDs []string, frame []byte) int
	// Broadcast sends frame to every connected client.
	Broadcast(ctx context.Context, frame []byte)
	// SendSnapshot sends the current live-user set to a single client.
	SendSnapshot(ctx context.Context, c Client)
}

// Client represents the minimal interface required for the Registry to
// communicate with an individual WebSocket connection.
type Client interface {
	ID() string
	UserID() string
	// Send queues data without blocking. It fails when the client is closed or its
	// outbound buffer is full.
	Send(ctx context.Context, data []byte) error
	Close()
}
