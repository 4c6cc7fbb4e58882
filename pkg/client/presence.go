package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"marketchat/internal/core/domain"
)

// PresenceTracker keeps the gateway's live presence for the users a client displays.
// A snapshot replaces the live set; presence:changed updates one user. Online answers
// combine that live signal with last-seen, so a user is online while connected or within
// the heartbeat threshold.
type PresenceTracker struct {
	mu       sync.RWMutex
	live     map[string]bool
	lastSeen map[string]time.Time
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		live:     make(map[string]bool),
		lastSeen: make(map[string]time.Time),
	}
}

func (t *PresenceTracker) ApplySnapshot(p domain.PresenceSnapshotPayload) {
	live := make(map[string]bool, len(p.OnlineUserIDs))
	for _, id := range p.OnlineUserIDs {
		if id != "" {
			live[id] = true
		}
	}
	t.mu.Lock()
	t.live = live
	t.mu.Unlock()
}

func (t *PresenceTracker) ApplyChanged(p domain.PresenceChangedPayload) {
	if p.UserID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.IsOnline {
		t.live[p.UserID] = true
	} else {
		delete(t.live, p.UserID)
	}
	if at, err := domain.ParseTime(p.LastSeenAt); err == nil && at.After(t.lastSeen[p.UserID]) {
		t.lastSeen[p.UserID] = at
	}
}

// Live reports whether the gateway last said userID has an open connection.
func (t *PresenceTracker) Live(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live[userID]
}

// LastSeen returns the later of lastSeenAt (usually from the API) and the last value
// carried by a presence event.
func (t *PresenceTracker) LastSeen(userID string, lastSeenAt *time.Time) *time.Time {
	t.mu.RLock()
	tracked, ok := t.lastSeen[userID]
	t.mu.RUnlock()
	switch {
	case !ok:
		return lastSeenAt
	case lastSeenAt == nil || tracked.After(*lastSeenAt):
		return &tracked
	default:
		return lastSeenAt
	}
}

func (t *PresenceTracker) Online(userID string, lastSeenAt *time.Time, now time.Time) bool {
	return domain.IsUserOnline(t.Live(userID), t.LastSeen(userID, lastSeenAt), now)
}

// Label renders a user view: "Online" when Online holds, otherwise the last-seen text.
// The view's own IsOnline flag only reflects last-seen on the server and is not consulted.
func (t *PresenceTracker) Label(user domain.UserView, now time.Time) string {
	var apiSeen *time.Time
	if user.LastSeenAt != nil {
		if at, err := domain.ParseTime(*user.LastSeenAt); err == nil {
			apiSeen = &at
		}
	}
	if t.Online(user.ID, apiSeen, now) {
		return "Online"
	}
	last := t.LastSeen(user.ID, apiSeen)
	if last == nil {
		if user.LastSeenAt != nil {
			return FormatLastSeen(*user.LastSeenAt, now)
		}
		return FormatLastSeen("", now)
	}
	return FormatLastSeen(domain.FormatTime(*last), now)
}

// Attach subscribes the tracker to s and asks for a fresh snapshot when s is connected.
// The gateway also sends one on every connect.
func (t *PresenceTracker) Attach(s *Session) func() {
	offs := []func(){
		s.On(domain.EventPresenceSnapshot, func(_ context.Context, data json.RawMessage) {
			var p domain.PresenceSnapshotPayload
			if json.Unmarshal(data, &p) == nil {
				t.ApplySnapshot(p)
			}
		}),
		s.On(domain.EventPresenceChanged, func(_ context.Context, data json.RawMessage) {
			var p domain.PresenceChangedPayload
			if json.Unmarshal(data, &p) == nil {
				t.ApplyChanged(p)
			}
		}),
	}
	if s.Connected() {
		_ = s.RequestSnapshot()
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
