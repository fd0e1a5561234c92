package cache

import (
	"sync"
	"time"

	"github.com/bdashore3/Ferrite/pkg/debrid/types"
)

type key struct {
	provider types.Provider
	hash     string
}

// Cache holds availability records keyed by (provider, hash). Records carry
// an absolute expiry; a stale record is replaced whole on the next lookup for
// its hash, never merged. Merges are additive per provider so concurrent
// provider lookups cannot clobber each other's key space.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[key]types.AvailabilityRecord

	now func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		ttl:     ttl,
		records: make(map[key]types.AvailabilityRecord),
		now:     time.Now,
	}
}

// Get returns the unexpired record for (provider, hash). Expired records are
// reported as misses but left in place; Partition evicts them when a fresh
// lookup is about to happen.
func (c *Cache) Get(provider types.Provider, hash string) (types.AvailabilityRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[key{provider, hash}]
	if !ok || rec.Expired(c.now()) {
		return types.AvailabilityRecord{}, false
	}
	return rec, true
}

// Partition splits candidates into those with a fresh record for provider
// and those needing a lookup. Expired records among the lookup set are
// evicted so the fresh result replaces rather than shadows them.
func (c *Cache) Partition(provider types.Provider, candidates []types.Magnet) (fresh []types.Magnet, needsLookup []types.Magnet) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range candidates {
		k := key{provider, m.Hash}
		rec, ok := c.records[k]
		if ok && !rec.Expired(now) {
			fresh = append(fresh, m)
			continue
		}
		if ok {
			delete(c.records, k)
		}
		needsLookup = append(needsLookup, m)
	}
	return fresh, needsLookup
}

// MergeBatch stores a provider's lookup results, stamping each record with
// the cache's expiry. Only the given provider's key space is touched.
func (c *Cache) MergeBatch(provider types.Provider, records map[string]types.AvailabilityRecord) {
	expiry := c.now().Add(c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for hash, rec := range records {
		rec.Provider = provider
		rec.Hash = hash
		rec.Expiry = expiry
		c.records[key{provider, hash}] = rec
	}
}

// Evict removes the record for (provider, hash) if present.
func (c *Cache) Evict(provider types.Provider, hash string) {
	c.mu.Lock()
	delete(c.records, key{provider, hash})
	c.mu.Unlock()
}

// Len reports the number of records currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// SetClock overrides the time source. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
