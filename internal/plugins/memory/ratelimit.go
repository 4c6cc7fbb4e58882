package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"marketchat/internal/core/contracts"
)

// FixedWindowLimiter is the in-process counterpart of the Redis limiter, for single-instance runs.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]bucket
}

type bucket struct {
	slot  int64
	count int
}

var _ contracts.RateLimiter = (*FixedWindowLimiter)(nil)

func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]bucket),
	}
}

func (l *FixedWindowLimiter) WithClock(now func() time.Time) *FixedWindowLimiter {
	l.now = now
	return l
}

func (l *FixedWindowLimiter) Allow(_ context.Context, key string) bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	slot := l.now().UnixMilli() / l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buckets[key]
	if b.slot != slot {
		// drop stale windows so the map stays bounded by active keys
		for k, other := range l.buckets {
			if other.slot < slot {
				delete(l.buckets, k)
			}
		}
		b = bucket{slot: slot}
	}
	b.count++
	l.buckets[key] = b
	return b.count <= l.limit
}
