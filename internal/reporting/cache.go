package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

const (
	DefaultCacheTTL        = 300 * time.Second
	MinCacheTTL            = 60 * time.Second
	DefaultCacheMaxEntries = 50
)

type cacheEntry struct {
	result     *domain.ReportResult
	insertedAt time.Time
	seq        uint64
}

// ReportCache holds generated results for ttl, keyed by CacheKey. Get returns
// the stored pointer itself, so repeated hits yield the identical result.
type ReportCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	seq        uint64
	hits       int64
	misses     int64
}

type CacheStats struct {
	Entries    int     `json:"entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hitRate"`
	TTLSeconds int     `json:"ttlSeconds"`
	MaxEntries int     `json:"maxEntries"`
}

// NewReportCache clamps ttl to MinCacheTTL. Zero values select the defaults.
func NewReportCache(ttl time.Duration, maxEntries int, now func() time.Time) *ReportCache {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if now == nil {
		now = time.Now
	}
	return &ReportCache{
		entries:    make(map[string]*cacheEntry),
		ttl:        clampTTL(ttl),
		maxEntries: maxEntries,
		now:        now,
	}
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < MinCacheTTL {
		return MinCacheTTL
	}
	return ttl
}

// Get returns a live entry. Expired entries are removed.
func (c *ReportCache) Get(key string) (*domain.ReportResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.result, true
}

// Set stores result and evicts the oldest insertions beyond maxEntries.
func (c *ReportCache) Set(key string, result *domain.ReportResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[key] = &cacheEntry{result: result, insertedAt: c.now(), seq: c.seq}
	c.evictLocked()
}

func (c *ReportCache) evictLocked() {
	excess := len(c.entries) - c.maxEntries
	if excess <= 0 {
		return
	}

	type aged struct {
		key string
		e   *cacheEntry
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].e.insertedAt.Equal(all[j].e.insertedAt) {
			return all[i].e.insertedAt.Before(all[j].e.insertedAt)
		}
		return all[i].e.seq < all[j].e.seq
	})
	for _, a := range all[:excess] {
		delete(c.entries, a.key)
	}
}

func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReportCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// SetTTL applies max(MinCacheTTL, ttl) and returns the effective value.
func (c *ReportCache) SetTTL(ttl time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = clampTTL(ttl)
	return c.ttl
}

func (c *ReportCache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

func (c *ReportCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Entries:    len(c.entries),
		Hits:       c.hits,
		Misses:     c.misses,
		TTLSeconds: int(c.ttl / time.Second),
		MaxEntries: c.maxEntries,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = domain.Round(float64(c.hits)/float64(total)*100, 2)
	}
	return stats
}

type cacheKeyData struct {
	Type      domain.ReportType `json:"type"`
	Filters   map[string]any    `json:"filters"`
	Columns   []string          `json:"columns"`
	DateRange *domain.DateRange `json:"dateRange"`
}

// CacheKey hashes type, filters, columns and date range. Metadata and sorting
// do not participate, so definitions differing only there share a key.
func CacheKey(def *domain.ReportDefinition) string {
	filters := def.Filters
	if filters == nil {
		filters = map[string]any{}
	}
	columns := def.Columns
	if columns == nil {
		columns = []string{}
	}

	// encoding/json writes map keys in sorted order.
	raw, err := json.Marshal(cacheKeyData{
		Type:      def.Type,
		Filters:   filters,
		Columns:   columns,
		DateRange: def.DateRange,
	})
	if err != nil {
		raw = []byte(string(def.Type) + ":" + def.ID)
	}
	sum := sha1.Sum(raw)
	return "report_" + hex.EncodeToString(sum[:])
}
