package cache

import (
	"context"
	"time"
)

// TwoTier orchestrates the in-process tier in front of the shared tier:
// reads promote a shared-tier hit into the in-process tier; writes go to
// both; tag invalidation is in-process only; pattern invalidation
// reaches into the shared tier too. Concurrent identical loads are
// coalesced via single-flight so a cache stampede never issues N
// identical upstream calls.
type TwoTier struct {
	local  *MemoryCache
	shared *SharedCache
	sf     *group
}

func NewTwoTier(local *MemoryCache, shared *SharedCache) *TwoTier {
	return &TwoTier{local: local, shared: shared, sf: newGroup()}
}

// Get checks the in-process tier first, then the shared tier (promoting
// on hit), reporting a miss only once both tiers have been checked.
func (t *TwoTier) Get(ctx context.Context, key string, dest any) (bool, error) {
	if v, ok := t.local.Get(key); ok {
		assignInto(dest, v)
		return true, nil
	}
	if t.shared == nil {
		return false, nil
	}
	found, err := t.shared.Get(ctx, key, dest)
	if err != nil || !found {
		return false, err
	}
	if p, ok := dest.(*any); ok {
		t.local.Set(key, *p, 0)
	} else {
		t.local.Set(key, dest, 0)
	}
	return true, nil
}

func assignInto(dest any, v any) {
	if p, ok := dest.(*any); ok {
		*p = v
	}
}

// Set writes to both tiers. ttl applies to both; tags apply only to the
// in-process tier.
func (t *TwoTier) Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) error {
	t.local.Set(key, value, ttl, tags...)
	if t.shared != nil {
		return t.shared.Set(ctx, key, value, ttl, nil)
	}
	return nil
}

// GetOrSet coalesces concurrent loads for the same key: only one call to
// load actually executes per key at a time; every other concurrent
// caller for that key receives the same result or error.
func (t *TwoTier) GetOrSet(ctx context.Context, key string, ttl time.Duration, load func(ctx context.Context) (any, error), tags ...string) (any, error) {
	var existing any
	if ok, err := t.Get(ctx, key, &existing); err != nil {
		return nil, err
	} else if ok {
		return existing, nil
	}

	v, err := t.sf.Do(key, func() (any, error) {
		var again any
		if ok, err := t.Get(ctx, key, &again); err == nil && ok {
			return again, nil
		}
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if setErr := t.Set(ctx, key, val, ttl, tags...); setErr != nil {
			return val, setErr
		}
		return val, nil
	})
	return v, err
}

func (t *TwoTier) Delete(ctx context.Context, key string) error {
	t.local.Delete(key)
	if t.shared != nil {
		return t.shared.Delete(ctx, key)
	}
	return nil
}

func (t *TwoTier) InvalidateByTags(tags ...string) int {
	return t.local.InvalidateByTags(tags...)
}

// InvalidatePattern removes matching keys from both tiers; the
// in-process tier only supports prefix matching (it has no glob
// matcher), the shared tier supports full glob via server-side SCAN.
func (t *TwoTier) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	removed := t.local.InvalidatePrefix(pattern)
	if t.shared == nil {
		return removed, nil
	}
	sharedRemoved, err := t.shared.InvalidatePattern(ctx, pattern+"*")
	return removed + sharedRemoved, err
}

func (t *TwoTier) Stats() Stats {
	return t.local.Stats()
}
