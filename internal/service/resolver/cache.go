package resolver

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	identityID string
	expiresAt  time.Time
}

// tokenCache caches token resolutions per tenant with a TTL. It is owned by
// the resolver and holds only identity ids, so a stale entry can at worst
// delay a re-link until expiry, never invent an identity.
type tokenCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newTokenCache(ttl time.Duration) *tokenCache {
	return &tokenCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(tenantID, token string) string {
	return tenantID + ":" + token
}

func (c *tokenCache) get(tenantID, token string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(tenantID, token)]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.identityID, true
}

func (c *tokenCache) put(tenantID, token, identityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(tenantID, token)] = cacheEntry{
		identityID: identityID,
		expiresAt:  time.Now().Add(c.ttl),
	}
}

// invalidateTenant drops every cached token for a tenant. Called after bulk
// employee updates so re-linked tokens resolve fresh.
func (c *tokenCache) invalidateTenant(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := tenantID + ":"
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}
