// Package cache implements the two-tier distributed cache: an in-process
// tier (this file) backed by a bounded, policy-driven eviction scheme,
// and a shared tier (shared.go) backed by Redis. Orchestration between
// the two lives in twotier.go.
package cache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"
)

// EvictionPolicy selects how the in-process tier picks a victim once it
// is at capacity.
type EvictionPolicy string

const (
	EvictLRU  EvictionPolicy = "lru"
	EvictLFU  EvictionPolicy = "lfu"
	EvictTTL  EvictionPolicy = "ttl" // evict the entry closest to expiry
	EvictFIFO EvictionPolicy = "fifo"
)

// MemoryConfig tunes the in-process tier, which is bounded by both
// entry count and total byte size.
type MemoryConfig struct {
	DefaultTTL      time.Duration
	MaxEntries      int
	MaxBytes        int64
	EvictionPolicy  EvictionPolicy
	CleanupInterval time.Duration
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		DefaultTTL:      5 * time.Minute,
		MaxEntries:      1000,
		MaxBytes:        64 << 20,
		EvictionPolicy:  EvictLRU,
		CleanupInterval: 10 * time.Minute,
	}
}

type entry struct {
	key        string
	value      any
	size       int64
	expiresAt  time.Time
	tags       []string
	accessedAt time.Time
	insertedAt time.Time
	hits       int64
	elem       *list.Element
}

func (e *entry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// sizeOf approximates an entry's resident byte size. Raw byte/string
// payloads are counted exactly; anything else is sized by its JSON
// encoding, with a 64-byte floor that also covers values that don't
// encode.
func sizeOf(value any) int64 {
	switch v := value.(type) {
	case []byte:
		return int64(len(v))
	case string:
		return int64(len(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil || len(raw) < 64 {
			return 64
		}
		return int64(len(raw))
	}
}

// MemoryCache is the in-process tier. Access order lives in a
// doubly-linked list whose elements are pinned on each entry, so every
// Get/Set/evict touches the order in O(1). Tag-based invalidation is
// only supported here; the shared tier explicitly does not index tags,
// since doing so would require a server-side secondary index this
// system does not maintain.
type MemoryCache struct {
	mu         sync.Mutex
	cfg        MemoryConfig
	entries    map[string]*entry
	order      *list.List // Front is the eviction candidate (oldest)
	totalBytes int64

	stats Stats
}

type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Sets      int64
	Bytes     int64
}

func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 << 20
	}
	if cfg.EvictionPolicy == "" {
		cfg.EvictionPolicy = EvictLRU
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	return &MemoryCache{cfg: cfg, entries: make(map[string]*entry), order: list.New()}
}

// StartCleanup launches the background expiry sweep; close stop to end
// the goroutine.
func (c *MemoryCache) StartCleanup(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweepExpired()
			case <-stop:
				return
			}
		}
	}()
}

func (c *MemoryCache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if e.isExpired(now) {
			c.removeLocked(k)
		}
	}
}

func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.isExpired(time.Now()) {
		c.stats.Misses++
		return nil, false
	}
	e.hits++
	e.accessedAt = time.Now()
	if c.cfg.EvictionPolicy == EvictLRU {
		c.order.MoveToBack(e.elem)
	}
	c.stats.Hits++
	return e.value, true
}

func (c *MemoryCache) Set(key string, value any, ttl time.Duration, tags ...string) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	size := sizeOf(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.totalBytes -= existing.size
		c.order.Remove(existing.elem)
		delete(c.entries, key)
	}

	for len(c.entries) >= c.cfg.MaxEntries || (len(c.entries) > 0 && c.totalBytes+size > c.cfg.MaxBytes) {
		if !c.evictOneLocked() {
			break
		}
	}

	now := time.Now()
	e := &entry{
		key:        key,
		value:      value,
		size:       size,
		expiresAt:  now.Add(ttl),
		tags:       tags,
		accessedAt: now,
		insertedAt: now,
	}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e
	c.totalBytes += size
	c.stats.Sets++
}

// evictOneLocked removes one victim per the configured policy and
// reports whether anything was evicted. LRU and FIFO take the list
// front in O(1); LFU and TTL scan for their victim, but never touch the
// access-order structure itself.
func (c *MemoryCache) evictOneLocked() bool {
	if len(c.entries) == 0 {
		return false
	}
	var victim string
	switch c.cfg.EvictionPolicy {
	case EvictLFU:
		var min int64 = -1
		for k, e := range c.entries {
			if min == -1 || e.hits < min {
				min = e.hits
				victim = k
			}
		}
	case EvictTTL:
		var soonest time.Time
		for k, e := range c.entries {
			if soonest.IsZero() || (!e.expiresAt.IsZero() && e.expiresAt.Before(soonest)) {
				soonest = e.expiresAt
				victim = k
			}
		}
	case EvictFIFO, EvictLRU:
		fallthrough
	default:
		if front := c.order.Front(); front != nil {
			victim = front.Value.(*entry).key
		}
	}
	if victim == "" {
		return false
	}
	c.removeLocked(victim)
	c.stats.Evictions++
	return true
}

func (c *MemoryCache) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.order.Remove(e.elem)
	c.totalBytes -= e.size
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// InvalidateByTags removes every entry that carries any of the given
// tags. Shared-tier invalidation never does this; tags are an
// in-process-only concept.
func (c *MemoryCache) InvalidateByTags(tags ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}

	removed := 0
	for k, e := range c.entries {
		for _, t := range e.tags {
			if _, ok := want[t]; ok {
				c.removeLocked(k)
				removed++
				break
			}
		}
	}
	return removed
}

func (c *MemoryCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			c.removeLocked(k)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
	c.totalBytes = 0
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Bytes = c.totalBytes
	return stats
}
