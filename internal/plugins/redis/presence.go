package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"marketchat/internal/core/contracts"
)

// LastSeenStore keeps every user's last-seen time in one ZSET scored by epoch millis,
// so all API instances share the same fallback presence signal.
type LastSeenStore struct {
	rdb *redis.Client
	key string
}

var _ contracts.LastSeenStore = (*LastSeenStore)(nil)

func NewLastSeenStore(rdb *redis.Client, prefix string) *LastSeenStore {
	return &LastSeenStore{rdb: rdb, key: namespace(prefix, "presence", "last_seen")}
}

// Touch only ever raises the score (ZADD GT), so a delayed heartbeat cannot move it back.
func (p *LastSeenStore) Touch(ctx context.Context, userID string, at time.Time) error {
	return p.rdb.ZAddArgs(ctx, p.key, redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(at.UnixMilli()), Member: userID}},
	}).Err()
}

func (p *LastSeenStore) LastSeen(ctx context.Context, userIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	pipe := p.rdb.Pipeline()
	cmds := make([]*redis.FloatCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.ZScore(ctx, p.key, id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for i, cmd := range cmds {
		score, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[userIDs[i]] = time.UnixMilli(int64(score)).UTC()
	}
	return out, nil
}
