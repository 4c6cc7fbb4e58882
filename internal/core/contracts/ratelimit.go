package contracts

import "context"

// RateLimiter answers whether key is still within quota for the current window.
// Implementations fail closed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}
