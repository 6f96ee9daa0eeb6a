package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/cache"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Scope names the limit in keys, logs and metrics ("views", "contact", ...)
	Scope string
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the bucket; defaults to the client IP
	KeyFunc func(c *gin.Context) string
}

// PerMinute returns a per-client-IP limit of n requests per minute
func PerMinute(scope string, n int) RateLimitConfig {
	return RateLimitConfig{Scope: scope, Limit: n, Window: time.Minute}
}

func (cfg RateLimitConfig) key(c *gin.Context) string {
	if cfg.KeyFunc != nil {
		if k := cfg.KeyFunc(c); k != "" {
			return k
		}
	}
	return c.ClientIP()
}

func (cfg RateLimitConfig) retryAfterSeconds() int {
	if cfg.Limit <= 0 {
		return int(cfg.Window.Seconds())
	}
	return int(math.Ceil(cfg.Window.Seconds() / float64(cfg.Limit)))
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key. It is the fallback when Redis is not configured.
type MemoryLimiter struct {
	config   RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

// NewMemoryLimiter creates an in-process limiter refilling Limit tokens per Window
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		config:   config,
		limiters: make(map[string]*limiterEntry),
	}
}

// Allow takes a token from key's bucket
func (ml *MemoryLimiter) Allow(key string) bool {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	entry, ok := ml.limiters[key]
	if !ok {
		every := ml.config.Window / time.Duration(max(ml.config.Limit, 1))
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(every), ml.config.Limit)}
		ml.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Sweep drops buckets idle for longer than one window; a fresh bucket is full anyway
func (ml *MemoryLimiter) Sweep(now time.Time) int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	removed := 0
	for key, entry := range ml.limiters {
		if now.Sub(entry.lastSeen) > ml.config.Window {
			delete(ml.limiters, key)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps idle buckets until ctx is cancelled
func (ml *MemoryLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				ml.Sweep(now)
			}
		}
	}()
}

// Handler returns the in-memory rate limiting middleware
func (ml *MemoryLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ml.Allow(ml.config.key(c)) {
			rejectRateLimited(c, ml.config, "memory")
			return
		}
		c.Next()
	}
}

// NewRateLimiter creates an in-memory rate limiting middleware
func NewRateLimiter(config RateLimitConfig) gin.HandlerFunc {
	return NewMemoryLimiter(config).Handler()
}

// RedisRateLimitMiddleware is a fixed-window limiter shared by every API instance.
// Redis errors reject the request with 503 rather than letting it through unlimited.
func RedisRateLimitMiddleware(config RateLimitConfig, client *cache.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !redisAllow(c, config, client) {
			return
		}
		c.Next()
	}
}

func redisAllow(c *gin.Context, config RateLimitConfig, client *cache.RedisClient) bool {
	clientKey := config.key(c)
	window := time.Now().Unix() / int64(max(config.Window.Seconds(), 1))
	key := fmt.Sprintf("rate_limit:%s:%s:%d", config.Scope, clientKey, window)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	count, err := client.Incr(ctx, key)
	if err == nil && count == 1 {
		err = client.Expire(ctx, key, config.Window)
	}
	if err != nil {
		logger.Log.Error("Rate limit check failed, rejecting request",
			zap.String("scope", config.Scope),
			logger.WithIP(c.ClientIP()),
			zap.Error(err),
		)
		recordRateLimitBackendError(config.Scope)
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("Service temporarily unavailable"))
		return false
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(max(config.Limit-int(count), 0)))

	if count > int64(config.Limit) {
		rejectRateLimited(c, config, "redis")
		return false
	}
	return true
}

// RateLimit uses Redis when a global client is configured and the in-memory limiter otherwise
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	memory := NewMemoryLimiter(config)
	memory.StartJanitor(context.Background(), time.Minute)
	memoryHandler := memory.Handler()

	return func(c *gin.Context) {
		if client := cache.GetRedisClient(); client != nil {
			if redisAllow(c, config, client) {
				c.Next()
			}
			return
		}
		memoryHandler(c)
	}
}

func rejectRateLimited(c *gin.Context, config RateLimitConfig, backend string) {
	retryAfter := config.retryAfterSeconds()
	logger.Log.Warn("Rate limit exceeded",
		zap.String("scope", config.Scope),
		zap.String("backend", backend),
		logger.WithIP(c.ClientIP()),
		zap.Int("max_requests", config.Limit),
	)
	RecordRateLimitExceeded(config.Scope, backend)

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
	c.Header("X-RateLimit-Remaining", "0")
	util.RespondWithAPIError(c, apierrors.RateLimited("").WithDetails(fmt.Sprintf("retry after %ds", retryAfter)))
}
