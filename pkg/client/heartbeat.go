package client

import (
	"context"
	"log/slog"
	"time"

	"marketchat/internal/core/domain"
)

// RunHeartbeat calls beat immediately and then every interval (domain.HeartbeatInterval when
// zero) until ctx ends. Failures are logged and the loop carries on.
func RunHeartbeat(ctx context.Context, interval time.Duration, beat func(context.Context) error, log *slog.Logger) {
	if interval <= 0 {
		interval = domain.HeartbeatInterval
	}
	if log == nil {
		log = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := beat(ctx); err != nil && ctx.Err() == nil {
			log.WarnContext(ctx, "client heartbeat - beat - failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
