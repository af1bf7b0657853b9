package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/aidconnect/hub/core/protocol"
)

// cachedClient deduplicates identical completion calls for the lifetime of
// the process. Useful because the orchestrator re-sends the same history
// when a turn is retried and during deterministic-shortcut phrasing.
type cachedClient struct {
	next Client

	mu      sync.Mutex
	entries map[string]string
}

// WithCache wraps a Client with an in-process response cache keyed by a
// digest of the full message payload.
func WithCache(next Client) Client {
	return &cachedClient{next: next, entries: make(map[string]string)}
}

func (c *cachedClient) Chat(ctx context.Context, messages []protocol.Message) (string, error) {
	key := cacheKey(messages)

	c.mu.Lock()
	if out, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	out, err := c.next.Chat(ctx, messages)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = out
	c.mu.Unlock()
	return out, nil
}

func cacheKey(messages []protocol.Message) string {
	payload, _ := json.Marshal(messages)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
