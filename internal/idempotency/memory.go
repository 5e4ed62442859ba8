package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	paymentID uuid.UUID
	expires   time.Time
}

// MemoryCache is the single-instance fallback used when no Redis is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: map[string]entry{}, ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Lookup(_ context.Context, buyerID uuid.UUID, key string) (uuid.UUID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey(buyerID, key)

	e, ok := c.entries[k]
	if !ok {
		return uuid.Nil, false, nil
	}

	if !c.now().Before(e.expires) {
		delete(c.entries, k)
		return uuid.Nil, false, nil
	}

	return e.paymentID, true, nil
}

func (c *MemoryCache) Remember(_ context.Context, buyerID uuid.UUID, key string, paymentID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	k := cacheKey(buyerID, key)

	if e, ok := c.entries[k]; ok && now.Before(e.expires) {
		return nil
	}

	c.entries[k] = entry{paymentID: paymentID, expires: now.Add(c.ttl)}

	return nil
}
