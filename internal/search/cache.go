package search

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seiixin/gunwadex/internal/cache"
	"github.com/seiixin/gunwadex/internal/logger"
	"go.uber.org/zap"
)

const (
	resultTTL     = 5 * time.Minute
	generationKey = "search:gen"
)

// resultCache stores search pages in Redis. Invalidation bumps a generation
// counter that is part of every key, so stale pages simply expire.
type resultCache struct {
	redis *cache.RedisClient
	ttl   time.Duration
}

func (c *resultCache) enabled() bool {
	return c != nil && c.redis != nil
}

func (c *resultCache) key(ctx context.Context, query string, limit, offset int) (string, error) {
	gen, err := c.redis.GetInt(ctx, generationKey)
	if err != nil {
		return "", err
	}
	data, _ := json.Marshal(map[string]interface{}{"q": query, "limit": limit, "offset": offset})
	return fmt.Sprintf("search:%d:%x", gen, md5.Sum(data)), nil
}

func (c *resultCache) get(ctx context.Context, query string, limit, offset int) (*Result, string) {
	if !c.enabled() {
		return nil, ""
	}
	key, err := c.key(ctx, query, limit, offset)
	if err != nil {
		logger.Log.Debug("Search cache unavailable", zap.Error(err))
		return nil, ""
	}
	cached, err := c.redis.Get(ctx, key)
	if err != nil {
		return nil, key
	}
	var result Result
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		return nil, key
	}
	return &result, key
}

func (c *resultCache) put(ctx context.Context, key string, result *Result) {
	if !c.enabled() || key == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.redis.SetEx(ctx, key, data, c.ttl); err != nil {
		logger.Log.Debug("Failed to cache search result", zap.Error(err))
	}
}

func (c *resultCache) invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if _, err := c.redis.Incr(ctx, generationKey); err != nil {
		logger.Log.Warn("Failed to invalidate search cache", zap.Error(err))
	}
}
