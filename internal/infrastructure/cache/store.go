// Package cache provides stores used to deduplicate inbound webhook messages.
package cache

import (
	"context"
	"time"
)

// IdempotencyStore remembers which message IDs were already handled
type IdempotencyStore interface {
	// MarkProcessed records id for ttl. It returns true if id was newly
	// marked and false if it had already been processed.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether id was marked and has not expired
	IsProcessed(ctx context.Context, id string) (bool, error)
	// Close releases resources held by the store
	Close() error
}
