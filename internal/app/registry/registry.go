package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
	"marketchat/pkg/logging"
)

// Registry maps users to their live connections (room user:{id}) and keeps the global
// set used for broadcasts. Joining and leaving drive presence transitions; a transition
// and its presence:changed broadcast happen under the registry lock so that two
// connections of one user racing can never emit online/offline out of order.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[contracts.Client]struct{}
	clients  map[contracts.Client]struct{}
	presence *PresenceRegistry
	now      func() time.Time
	log      *slog.Logger
}

var _ contracts.Registry = (*Registry)(nil)

func NewRegistry(log *slog.Logger, presence *PresenceRegistry) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if presence == nil {
		presence = NewPresenceRegistry()
	}
	return &Registry{
		rooms:    make(map[string]map[contracts.Client]struct{}),
		clients:  make(map[contracts.Client]struct{}),
		presence: presence,
		now:      time.Now,
		log:      log,
	}
}

func (h *Registry) Presence() *PresenceRegistry { return h.presence }

func (h *Registry) Join(c contracts.Client) {
	userID := c.UserID()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		return
	}
	room := h.rooms[userID]
	if room == nil {
		room = make(map[contracts.Client]struct{})
		h.rooms[userID] = room
	}
	room[c] = struct{}{}
	h.clients[c] = struct{}{}

	if h.presence.Increment(userID) {
		h.log.Info("registry - join - user online", logging.User(userID))
		h.broadcastPresenceLocked(userID, true)
	}
}

func (h *Registry) Leave(c contracts.Client) {
	userID := c.UserID()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if room := h.rooms[userID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, userID)
		}
	}

	if h.presence.Decrement(userID) {
		h.log.Info("registry - leave - user offline", logging.User(userID))
		h.broadcastPresenceLocked(userID, false)
	}
}

func (h *Registry) EmitToUsers(ctx context.Context, userIDs []string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		for c := range h.rooms[userID] {
			if h.deliver(ctx, c, frame) {
				sent++
			}
		}
	}
	return sent
}

func (h *Registry) Broadcast(ctx context.Context, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.broadcastLocked(ctx, frame)
}

func (h *Registry) SendSnapshot(ctx context.Context, c contracts.Client) {
	frame, err := domain.NewFrame(domain.EventPresenceSnapshot, domain.PresenceSnapshotPayload{
		OnlineUserIDs: h.presence.Snapshot(),
		EmittedAt:     domain.FormatTime(h.now()),
	})
	if err != nil {
		h.log.Error("registry - send snapshot - encode failed", logging.Err(err))
		return
	}
	h.deliver(ctx, c, frame)
}

// ConnectionCount returns the number of joined connections.
func (h *Registry) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Registry) broadcastPresenceLocked(userID string, online bool) {
	frame, err := domain.NewFrame(domain.EventPresenceChanged, domain.PresenceChangedPayload{
		UserID:     userID,
		IsOnline:   online,
		LastSeenAt: domain.FormatTime(h.now()),
	})
	if err != nil {
		h.log.Error("registry - presence - encode failed", logging.Err(err))
		return
	}
	h.broadcastLocked(context.Background(), frame)
}

func (h *Registry) broadcastLocked(ctx context.Context, frame []byte) {
	for c := range h.clients {
		h.deliver(ctx, c, frame)
	}
}

// deliver never blocks. A client whose buffer is full is closed; it reconnects and refetches.
// Close runs on its own goroutine because it ends in Leave, which needs the lock held here.
func (h *Registry) deliver(ctx context.Context, c contracts.Client, frame []byte) bool {
	err := c.Send(ctx, frame)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrSlowConsumer) {
		h.log.Warn("registry - deliver - slow consumer closed", logging.User(c.UserID()), logging.Client(c.ID()))
		go c.Close()
	}
	return false
}

// CloseAll closes every joined connection, for shutdown. Each connection's handler then
// calls Leave, which emits the offline transitions.
func (h *Registry) CloseAll() {
	h.mu.RLock()
	clients := make([]contracts.Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
	h.log.Info("registry - close all - done", "connections", len(clients))
}
