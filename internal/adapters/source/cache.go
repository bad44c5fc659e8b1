package source

import (
	"context"
	"sync"
	"time"

	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/metrics"
)

type cacheKey struct {
	source  model.SourceID
	session string
}

type cacheEntry struct {
	resp    Response
	expires time.Time
}

// Cache keeps successful capability responses per source and session for a
// fixed TTL. Auth requests, failures and documents that do not decode into
// the source's payload are never cached.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// NewCache creates a Cache. A non-positive ttl disables caching.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Wrap returns next decorated with the cache.
func (c *Cache) Wrap(id model.SourceID, next Capability) Capability {
	if c == nil || c.ttl <= 0 {
		return next
	}
	return CapabilityFunc(func(ctx context.Context, sessionID string) (Response, error) {
		key := cacheKey{source: id, session: sessionID}
		if resp, ok := c.get(key); ok {
			metrics.RecordCacheLookup(string(id), true)
			return resp, nil
		}
		metrics.RecordCacheLookup(string(id), false)

		resp, err := next.Fetch(ctx, sessionID)
		if err == nil && resp.AuthLink == "" {
			if _, derr := decodePayload(id, resp.Payload); derr == nil {
				c.set(key, resp)
			}
		}
		return resp, err
	})
}

// Invalidate drops every entry for sessionID.
func (c *Cache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.session == sessionID {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	return len(c.entries)
}

func (c *Cache) get(key cacheKey) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Response{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return Response{}, false
	}
	return e.resp, true
}

func (c *Cache) set(key cacheKey, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	c.entries[key] = cacheEntry{resp: resp, expires: c.now().Add(c.ttl)}
}

// sweep drops expired entries. Callers hold mu.
func (c *Cache) sweep() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}
