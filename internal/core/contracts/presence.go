package contracts

import (
	"context"
	"time"
)

// LastSeenStore persists the cross-process "last seen" signal. The gateway's live
// connection count is authoritative for its own clients; this is the fallback.
type LastSeenStore interface {
	// Touch records that userID was seen at the given time. Older times never overwrite newer ones.
	Touch(ctx context.Context, userID string, at time.Time) error
	// LastSeen returns the known last-seen time per user; users never seen are absent.
	LastSeen(ctx context.Context, userIDs []string) (map[string]time.Time, error)
}
