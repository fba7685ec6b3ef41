package credential

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Token is the short-lived bearer material issued by a credential kind.
type Token struct {
	Secret    []byte // opaque bearer string; caller treats as sensitive
	Type      string
	IssuedAt  time.Time
	ExpiresAt *time.Time
	Scopes    []string
}

func (t Token) nearExpiry(skew time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(skew).After(*t.ExpiresAt)
}

// CacheStats exports the hit/miss/size/capacity statistics of a TokenCache.
type CacheStats struct {
	Hits     uint64
	Misses   uint64
	Size     int
	Capacity int
}

// negativeTTL is the fixed TTL applied to a cached NotFound marker,
// bounding thundering-herd re-lookups without needing a separate negative
// cache structure.
const negativeTTL = 5 * time.Second

type cacheEntry struct {
	token     *Token // nil marks a cached NotFound
	cachedNeg bool
	expiresAt time.Time
}

func (e cacheEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// TokenCache is an LRU cache of issued tokens with per-entry TTL
// implemented as lazy expiry on top of github.com/hashicorp/golang-lru/v2.
// The base LRU package has no built-in per-entry expiry, so each entry
// records its own deadline and Get evicts it on first access past that
// deadline.
type TokenCache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, cacheEntry]
	hits   uint64
	misses uint64
	cap    int
}

func NewTokenCache(capacity int) *TokenCache {
	if capacity <= 0 {
		capacity = 1024
	}
	c, _ := lru.New[string, cacheEntry](capacity)
	return &TokenCache{lru: c, cap: capacity}
}

// Get returns the cached token for key, whether it was present (and not
// expired), and whether the present entry is a negative (NotFound) marker.
func (c *TokenCache) Get(key string) (token *Token, present bool, negative bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok || entry.expired() {
		if ok {
			c.lru.Remove(key)
		}
		c.misses++
		return nil, false, false
	}
	c.hits++
	return entry.token, true, entry.cachedNeg
}

// Put caches a token with the given TTL.
func (c *TokenCache) Put(key string, token Token, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var deadline time.Time
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	c.lru.Add(key, cacheEntry{token: &token, expiresAt: deadline})
}

// PutNegative caches a NotFound marker for negativeTTL.
func (c *TokenCache) PutNegative(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, cacheEntry{cachedNeg: true, expiresAt: time.Now().Add(negativeTTL)})
}

// Del removes key from the cache, used after a successful rotation so a
// stale token or negative marker cannot outlive the credential it names.
func (c *TokenCache) Del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *TokenCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: c.lru.Len(), Capacity: c.cap}
}
