package registry

import (
	"sort"
	"sync"
)

// PresenceRegistry counts open connections per user. A user is live while the count is
// non-zero. It is owned by one gateway process and rebuilt from zero on restart.
type PresenceRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{counts: make(map[string]int)}
}

// Increment adds a connection and reports whether it was the user's first (0 -> 1).
func (p *PresenceRegistry) Increment(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	return p.counts[userID] == 1
}

// Decrement removes a connection and reports whether it was the user's last (1 -> 0).
// Decrementing a user with no connections is a no-op.
func (p *PresenceRegistry) Decrement(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.counts, userID)
		return true
	}
	p.counts[userID] = n - 1
	return false
}

func (p *PresenceRegistry) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID] > 0
}

func (p *PresenceRegistry) Count(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID]
}

// Snapshot returns the live user ids in ascending order.
func (p *PresenceRegistry) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.counts))
	for id := range p.counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
