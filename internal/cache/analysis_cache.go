package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	analysisKeyPrefix = "analysis"
	scanBatchSize     = 100
)

// AnalysisCache stores orchestrator results as JSON. A miss is reported as
// (false, nil); errors are only returned for backend or decode failures.
type AnalysisCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	InvalidateAll(ctx context.Context) error
}

type redisAnalysisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAnalysisCache struct{}

// NewAnalysisCache returns a redis cache when enabled, otherwise a noop.
func NewAnalysisCache(cfg config.CacheConfig) (AnalysisCache, error) {
	if !cfg.Enabled {
		return &noopAnalysisCache{}, nil
	}

	client, err := dialRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisAnalysisCache{client: client, ttl: ttlFromConfig(cfg)}, nil
}

func NewNoopAnalysisCache() AnalysisCache {
	return &noopAnalysisCache{}
}

func (c *redisAnalysisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode analysis cache: %w", err)
	}
	return true, nil
}

func (c *redisAnalysisCache) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode analysis cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAnalysisCache) InvalidateAll(ctx context.Context) error {
	n, err := purgePrefix(ctx, c.client, analysisKeyPrefix+":", scanBatchSize)
	if err != nil {
		return err
	}
	log.Debug().Int("keys", n).Msg("cache: analysis entries invalidated")
	return nil
}

func (n *noopAnalysisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return false, nil
}

func (n *noopAnalysisCache) Set(ctx context.Context, key string, value any) error {
	return nil
}

func (n *noopAnalysisCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// AnalysisKey builds "analysis:<operation>:<hash>" where hash covers the
// sorted, normalized parts. No parts yields the "default" suffix.
func AnalysisKey(operation string, parts ...string) string {
	return fmt.Sprintf("%s:%s:%s", analysisKeyPrefix, operation, hashParts(parts))
}

func hashParts(parts []string) string {
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	if len(normalized) == 0 {
		return "default"
	}

	sort.Strings(normalized)
	sum := sha1.Sum([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}
