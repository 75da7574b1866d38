package cache

import (
	"context"
	"time"
)

// NoOpCache is used when no Redis address is configured: every lookup is a
// miss and writes succeed silently.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetChatResult(ctx context.Context, key string) (*ChatResult, error) {
	return nil, nil
}

func (c *NoOpCache) SetChatResult(ctx context.Context, key string, result *ChatResult, ttl time.Duration) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
