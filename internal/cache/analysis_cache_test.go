package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisKeyIsOrderAndCaseInsensitive(t *testing.T) {
	a := AnalysisKey("comprehensive", "category=Tools", "supplier=s1")
	b := AnalysisKey("comprehensive", " supplier=S1", "category=tools")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "analysis:comprehensive:"))

	assert.Equal(t, "analysis:weekly:default", AnalysisKey("weekly"))
	assert.Equal(t, "analysis:weekly:default", AnalysisKey("weekly", "", "  "))
	assert.NotEqual(t, a, AnalysisKey("optimize", "category=tools", "supplier=s1"))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c, err := NewAnalysisCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}))

	var out map[string]int
	hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, out)
	assert.NoError(t, c.InvalidateAll(ctx))
}

func TestBuildRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.CacheConfig
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{name: "defaults", cfg: config.CacheConfig{}, wantAddr: "127.0.0.1:6379"},
		{name: "host and port", cfg: config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2}, wantAddr: "cache:6380", wantDB: 2},
		{name: "url wins", cfg: config.CacheConfig{RedisURL: "redis://redis.internal:6390/3", RedisHost: "ignored"}, wantAddr: "redis.internal:6390", wantDB: 3},
		{name: "bad url", cfg: config.CacheConfig{RedisURL: "http://nope"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			opts, err := buildRedisOptions(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, opts.Addr)
			assert.Equal(t, tt.wantDB, opts.DB)
		})
	}
}

func TestTTLFromConfig(t *testing.T) {
	assert.Equal(t, defaultCacheTTL, ttlFromConfig(config.CacheConfig{}))
	assert.Equal(t, 90*time.Second, ttlFromConfig(config.CacheConfig{AnalysisTTLSeconds: 90}))
}
