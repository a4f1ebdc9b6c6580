package dsqlengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetRoundtrip(t *testing.T) {
	c := NewCache[string](10, 0)
	c.Set("k1", "v1")
	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestCache_MissIncrementsCounter(t *testing.T) {
	c := NewCache[string](10, 0)
	_, ok := c.Get("missing")
	assert.False(t, ok)
	stats := c.Statistics()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_LRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	// Touch "a" so "b" becomes the least recently used.
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted as LRU")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	stats := c.Statistics()
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewCache[string](10, time.Millisecond)
	c.Set("k", "v")
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_InvalidateByObject(t *testing.T) {
	c := NewCache[string](10, 0)
	c.Set("q1", "v1", "Account")
	c.Set("q2", "v2", "Contact")
	c.Set("q3", "v3", "Account", "Contact")

	n := c.InvalidateByObject("Account")
	assert.Equal(t, 2, n)

	_, ok := c.Get("q1")
	assert.False(t, ok)
	_, ok = c.Get("q2")
	assert.True(t, ok)
	_, ok = c.Get("q3")
	assert.False(t, ok)
}

func TestCache_ClearResetsEntriesNotCounters(t *testing.T) {
	c := NewCache[string](10, 0)
	c.Set("k", "v")
	_, _ = c.Get("k")
	_, _ = c.Get("missing")

	c.Clear()

	_, ok := c.Get("k")
	assert.False(t, ok)

	stats := c.Statistics()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses) // "missing" + post-clear "k" miss
}

func TestCache_StatisticsReportsEntryBreakdown(t *testing.T) {
	c := NewCache[string](10, 0)
	c.Set("popular", "v1")
	c.Set("rare", "v2")

	_, _ = c.Get("popular")
	_, _ = c.Get("popular")
	_, _ = c.Get("popular")
	_, _ = c.Get("rare")

	stats := c.Statistics()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, int64(4), stats.TotalHits)
	assert.Equal(t, float64(2), stats.AvgHits)
	require.NotEmpty(t, stats.TopPlans)
	assert.Equal(t, "popular", stats.TopPlans[0])
	assert.False(t, stats.OldestEntry.IsZero())
	assert.False(t, stats.MostRecentEntry.IsZero())
}

func TestCache_StartStopSweepRemovesExpiredEntries(t *testing.T) {
	c := NewCache[string](10, 2*time.Millisecond)
	c.Set("k", "v")
	c.StartSweep(time.Millisecond)
	defer c.Stop()

	time.Sleep(20 * time.Millisecond)

	c.mu.Lock()
	size := c.order.Len()
	c.mu.Unlock()
	assert.Equal(t, 0, size)
}

func TestObjectTagsForQuery(t *testing.T) {
	q := &Query{
		FromObject: "Contact",
		Joins: []Join{
			{TargetObject: "Account"},
			{TargetObject: "Opportunity"},
		},
	}
	tags := objectTagsForQuery(q)
	assert.Equal(t, []string{"Contact", "Account", "Opportunity"}, tags)
}
