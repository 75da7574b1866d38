package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache stores chat responses so repeated questions skip the retrieval and
// generation round trip.
type Cache interface {
	// GetChatResult retrieves a cached chat result by key. Returns nil on a
	// cache miss.
	GetChatResult(ctx context.Context, key string) (*ChatResult, error)

	// SetChatResult stores a chat result with TTL.
	SetChatResult(ctx context.Context, key string, result *ChatResult, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// ChatResult is a cached chat response. Sources stay serialized so the cache
// does not depend on the retrieval package.
type ChatResult struct {
	Reply   string          `json:"reply"`
	Sources json.RawMessage `json:"sources"`
}
