package policies

import "context"

// RateLimiter throttles message posting per user across all chats.
type RateLimiter interface {
	Consume(ctx context.Context, userID string) (bool, error)
}
