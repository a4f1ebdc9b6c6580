package dsqlengine

import (
	"container/list"
	"sort"
	"sync"
	"time"
)

// This file implements the plan cache and result cache (spec §4.5): a
// thread-safe map plus a mutex-guarded LRU list, TTL-based expiry, and a
// periodic sweep goroutine. The spec's own concurrency section effectively
// prescribes this shape ("concurrent map for get/set, plus a small mutex
// guarding the LRU list") rather than naming a library, so both caches are
// hand-rolled generic types reused for plan and result storage alike.

// CacheStatistics reports a cache's running counters, returned by
// get_statistics (spec §4.5): overall hit/miss/eviction counters plus the
// per-entry breakdown (total_entries, total_hits, avg_hits, oldest_entry,
// most_recent_entry, top_plans) the spec calls out by name.
type CacheStatistics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int

	TotalEntries    int
	TotalHits       int64
	AvgHits         float64
	OldestEntry     time.Time
	MostRecentEntry time.Time
	TopPlans        []string
}

// topPlansTracked bounds how many keys get_statistics reports in TopPlans.
const topPlansTracked = 5

type cacheEntry[V any] struct {
	key            string
	value          V
	expiresAt      time.Time
	objectTags     []string
	createdAt      time.Time
	lastAccessedAt time.Time
	hits           int64
}

// Cache is a thread-safe, bounded LRU cache with optional TTL expiry and
// tag-based invalidation. It backs both the plan cache (V = *Plan) and the
// result cache (V = []map[string]any).
type Cache[V any] struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration

	hits      int64
	misses    int64
	evictions int64

	stop chan struct{}
}

// NewCache builds a Cache bounded to maxEntries with the given TTL. A zero
// ttl means entries never expire on their own (only LRU eviction applies).
func NewCache[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns the cached value for key, reporting a miss (and evicting the
// entry) if it has expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	entry := el.Value.(*cacheEntry[V])
	if c.expired(entry) {
		c.removeElement(el)
		c.misses++
		var zero V
		return zero, false
	}

	entry.hits++
	entry.lastAccessedAt = time.Now()
	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Set stores value under key, tagged with the object names it depends on
// (the query's from-object plus any joined objects) so InvalidateByObject
// can find it later. Inserting past maxEntries evicts the least recently
// used entry.
func (c *Cache[V]) Set(key string, value V, objectTags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry[V])
		entry.value = value
		entry.objectTags = objectTags
		entry.expiresAt = c.expiry()
		c.order.MoveToFront(el)
		return
	}

	now := time.Now()
	entry := &cacheEntry[V]{
		key:            key,
		value:          value,
		objectTags:     objectTags,
		expiresAt:      c.expiry(),
		createdAt:      now,
		lastAccessedAt: now,
	}
	el := c.order.PushFront(entry)
	c.items[key] = el

	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		c.evictOldest()
	}
}

func (c *Cache[V]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ttl)
}

func (c *Cache[V]) expired(entry *cacheEntry[V]) bool {
	return !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)
}

func (c *Cache[V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
	c.evictions++
}

func (c *Cache[V]) removeElement(el *list.Element) {
	entry := el.Value.(*cacheEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(el)
}

// InvalidateByObject removes every cached entry tagged with objectName,
// returning the count removed (spec §4.5, invalidate_by_object).
func (c *Cache[V]) InvalidateByObject(objectName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for el := c.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*cacheEntry[V])
		for _, tag := range entry.objectTags {
			if tag == objectName {
				toRemove = append(toRemove, el)
				break
			}
		}
	}
	for _, el := range toRemove {
		c.removeElement(el)
	}
	return len(toRemove)
}

// Clear empties the cache without affecting its running counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Statistics returns a snapshot of the cache's counters, including the
// per-entry breakdown (total_entries, total_hits, avg_hits, oldest_entry,
// most_recent_entry, top_plans) spec §4.5's get_statistics names explicitly.
func (c *Cache[V]) Statistics() CacheStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStatistics{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.order.Len(),
	}

	type ranked struct {
		key  string
		hits int64
	}
	var entries []ranked
	for el := c.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*cacheEntry[V])
		stats.TotalHits += entry.hits
		if stats.OldestEntry.IsZero() || entry.createdAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.createdAt
		}
		if entry.lastAccessedAt.After(stats.MostRecentEntry) {
			stats.MostRecentEntry = entry.lastAccessedAt
		}
		entries = append(entries, ranked{entry.key, entry.hits})
	}
	stats.TotalEntries = len(entries)
	if stats.TotalEntries > 0 {
		stats.AvgHits = float64(stats.TotalHits) / float64(stats.TotalEntries)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].hits > entries[j].hits })
	if len(entries) > topPlansTracked {
		entries = entries[:topPlansTracked]
	}
	for _, e := range entries {
		stats.TopPlans = append(stats.TopPlans, e.key)
	}

	return stats
}

// sweepExpired walks the cache once, removing every entry whose TTL has
// elapsed. Called periodically by StartSweep rather than only on access,
// so memory used by stale entries that are never looked up again is still
// reclaimed.
func (c *Cache[V]) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for el := c.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*cacheEntry[V])
		if c.expired(entry) {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.removeElement(el)
	}
}

// StartSweep launches a goroutine that calls sweepExpired every interval
// until Stop is called. The Engine owns the lifecycle of this goroutine
// per cache instance (started from NewEngine, stopped from Close) rather
// than a package-level singleton sweeper, so multiple engines in the same
// process never share sweep state (spec §5).
func (c *Cache[V]) StartSweep(interval time.Duration) {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
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

// Stop ends the sweep goroutine started by StartSweep, if any.
func (c *Cache[V]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// objectTagsForQuery lists the object names a query (and its joins)
// depends on, used to tag cache entries for InvalidateByObject.
func objectTagsForQuery(q *Query) []string {
	tags := []string{q.FromObject}
	for _, j := range q.Joins {
		tags = append(tags, j.TargetObject)
	}
	return tags
}
