// Package cache implements the response cache (C9): a fingerprint→response
// cache with per-tool TTL, a priority tier, and LRU eviction within a memory
// bound. Avoids global mutable state: the cache is an injected singleton per
// workspace with explicit New/Close, matching the ambient logging package's
// (logger, cleanup, error) construction idiom.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Priority is the eviction-tier a cache entry is stamped with. High-priority
// entries (large total-hits responses, expensive to recompute) live in a
// separate LRU segment, so inserting low-priority entries never evicts them.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

// entry is the cached value plus its absolute expiration.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Config configures the cache's two LRU segments and default TTLs.
type Config struct {
	LowCapacity  int
	HighCapacity int
	DefaultTTL   time.Duration
}

// DefaultConfig mirrors the spec's "TTL per tool (5-15 min)" guidance with a
// single default in that range; per-call TTL overrides are still honored.
func DefaultConfig() Config {
	return Config{
		LowCapacity:  1024,
		HighCapacity: 256,
		DefaultTTL:   10 * time.Minute,
	}
}

// Cache is the response cache. Safe for concurrent use.
type Cache struct {
	mu   sync.Mutex
	low  *lru.Cache[string, entry]
	high *lru.Cache[string, entry]
	cfg  Config
}

// New constructs a Cache. Returns a cleanup func for symmetry with the
// ambient logging/embedding-client constructors; the cache itself holds no
// external resources so cleanup is a no-op, but callers still defer it so a
// future resource (e.g. a disk-backed segment) can be added without a call
// site change.
func New(cfg Config) (*Cache, func(), error) {
	low, err := lru.New[string, entry](cfg.LowCapacity)
	if err != nil {
		return nil, nil, err
	}
	high, err := lru.New[string, entry](cfg.HighCapacity)
	if err != nil {
		return nil, nil, err
	}
	c := &Cache{low: low, high: high, cfg: cfg}
	return c, func() {}, nil
}

// Key derives the deterministic cache key from a tool name and its
// parameter object: sha256 of the tool name plus the canonical JSON
// encoding of params (map keys sorted by encoding/json).
func Key(toolName string, params any) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached value for key if present and not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.high.Get(key); ok {
		if time.Now().Before(e.expiresAt) {
			return e.value, true
		}
		c.high.Remove(key)
	}
	if e, ok := c.low.Get(key); ok {
		if time.Now().Before(e.expiresAt) {
			return e.value, true
		}
		c.low.Remove(key)
	}
	return nil, false
}

// Set stores value under key with the given TTL and priority. A zero TTL
// falls back to cfg.DefaultTTL.
func (c *Cache) Set(key string, value []byte, ttl time.Duration, priority Priority) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	e := entry{value: value, expiresAt: time.Now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch priority {
	case PriorityHigh:
		c.high.Add(key, e)
	default:
		c.low.Add(key, e)
	}
}

// InvalidateAll clears both segments. Called per-workspace whenever C7
// commits a write, since any cached response for that workspace may now be
// stale.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.low.Purge()
	c.high.Purge()
}

// Close releases the cache's resources. Present for symmetry with other
// injected singletons that do hold resources.
func (c *Cache) Close() error { return nil }
