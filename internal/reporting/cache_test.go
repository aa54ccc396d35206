package reporting

import (
	"fmt"
	"testing"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(name string) *domain.ReportResult {
	def := domain.NewSimpleDefinition(domain.ReportInventory, name, nil)
	return domain.NewSuccessResult(def, nil, nil, nil, nil)
}

func TestReportCacheReturnsStoredPointerUntilExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewReportCache(DefaultCacheTTL, 0, clock.Now)
	res := sampleResult("stock")

	c.Set("k", res)
	clock.Advance(299 * time.Second)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, res, got)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entries are removed on read")
}

func TestReportCacheClampsTTL(t *testing.T) {
	c := NewReportCache(10*time.Second, 0, nil)
	assert.Equal(t, MinCacheTTL, c.TTL())

	assert.Equal(t, MinCacheTTL, c.SetTTL(5*time.Second))
	assert.Equal(t, 120*time.Second, c.SetTTL(120*time.Second))
	assert.Equal(t, DefaultCacheTTL, NewReportCache(0, 0, nil).TTL())
}

func TestReportCacheEvictsOldestInsertion(t *testing.T) {
	clock := newFakeClock()
	c := NewReportCache(time.Hour, DefaultCacheMaxEntries, clock.Now)

	for i := 0; i <= DefaultCacheMaxEntries; i++ {
		c.Set(fmt.Sprintf("key-%d", i), sampleResult(fmt.Sprintf("r%d", i)))
		clock.Advance(time.Second)
	}

	assert.Equal(t, DefaultCacheMaxEntries, c.Len())
	_, ok := c.Get("key-0")
	assert.False(t, ok)
	for i := 1; i <= DefaultCacheMaxEntries; i++ {
		_, ok := c.Get(fmt.Sprintf("key-%d", i))
		assert.True(t, ok, "key-%d", i)
	}
}

func TestReportCacheEvictionBreaksTiesByInsertionOrder(t *testing.T) {
	clock := newFakeClock()
	c := NewReportCache(time.Hour, 2, clock.Now)

	c.Set("first", sampleResult("1"))
	c.Set("second", sampleResult("2"))
	c.Set("third", sampleResult("3"))

	_, ok := c.Get("first")
	assert.False(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}

func TestReportCacheStats(t *testing.T) {
	c := NewReportCache(0, 0, nil)
	c.Set("k", sampleResult("x"))
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.InDelta(t, 66.67, stats.HitRate, 0.01)
	assert.Equal(t, 300, stats.TTLSeconds)
	assert.Equal(t, DefaultCacheMaxEntries, stats.MaxEntries)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCacheKey(t *testing.T) {
	base := func() *domain.ReportDefinition {
		def := domain.NewSimpleDefinition(domain.ReportInventory, "Stock", map[string]any{
			"stockLevel": "low",
			"category":   "tools",
		})
		def.Columns = []string{"id", "name"}
		return def
	}

	a := base()
	b := base()
	b.Name = "Another name"
	b.Metadata["requested_by"] = "ops"
	b.Sorting = []domain.SortField{{Field: "quantity", Desc: true}}
	assert.Equal(t, CacheKey(a), CacheKey(b), "metadata, sorting and name are not part of the key")
	assert.Contains(t, CacheKey(a), "report_")

	c := base()
	c.Filters["stockLevel"] = "out"
	assert.NotEqual(t, CacheKey(a), CacheKey(c))

	d := base()
	d.Columns = []string{"name", "id"}
	assert.NotEqual(t, CacheKey(a), CacheKey(d))

	e := base()
	e.DateRange = domain.LastDays(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 7)
	assert.NotEqual(t, CacheKey(a), CacheKey(e))

	f := base()
	f.Type = domain.ReportAIPerformance
	assert.NotEqual(t, CacheKey(a), CacheKey(f))
}
