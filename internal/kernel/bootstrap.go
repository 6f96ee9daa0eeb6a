package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/seiixin/gunwadex/internal/cache"
	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/database"
	"github.com/seiixin/gunwadex/internal/email"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/search"
	"github.com/seiixin/gunwadex/internal/storage"
	"go.uber.org/zap"
)

// Bootstrap connects every backing service named by cfg, wires the kernel and
// registers the matching cleanup hooks. On failure the hooks registered so far
// have already run.
func Bootstrap(ctx context.Context, cfg *config.Config) (k *Kernel, err error) {
	k = New().WithConfig(cfg).WithLogger(logger.Log)
	defer func() {
		if err != nil {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = k.Cleanup(cleanupCtx)
			k = nil
		}
	}()

	if err = database.Initialize(cfg); err != nil {
		return k, fmt.Errorf("database: %w", err)
	}
	k.WithDB(database.DB).OnCleanup(func(context.Context) error {
		return database.Close()
	})

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		// Redis is optional; the rate limiter and counters fall back to memory/SQL
		logger.WarnWithFields("Redis unavailable, continuing without it", err)
		redisClient = nil
		err = nil
	}
	cache.SetGlobal(redisClient)
	if redisClient != nil {
		k.WithCache(redisClient).OnCleanup(func(context.Context) error {
			cache.SetGlobal(nil)
			return redisClient.Close()
		})
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return k, fmt.Errorf("storage: %w", err)
	}
	k.WithStore(store)

	mailer, err := email.New(cfg.Mail)
	if err != nil {
		return k, fmt.Errorf("mail: %w", err)
	}
	k.WithMailer(mailer)

	esClient, err := search.NewClient(cfg.Search)
	if err != nil {
		return k, fmt.Errorf("search: %w", err)
	}
	if esClient != nil {
		if pingErr := esClient.Ping(ctx); pingErr != nil {
			logger.WarnWithFields("Elasticsearch unreachable, using database search", pingErr)
		} else if _, ensureErr := esClient.EnsureIndex(ctx); ensureErr != nil {
			logger.WarnWithFields("Failed to ensure search index", ensureErr)
		}
		k.WithSearchClient(esClient)
	}

	if err = k.Wire(); err != nil {
		return k, err
	}

	if err = k.Validate(); err != nil {
		return k, err
	}

	k.Logger().Info("Kernel ready",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("mail", cfg.Mail.Backend),
		zap.Bool("redis", redisClient != nil),
		zap.Bool("elasticsearch", esClient != nil),
	)
	return k, nil
}

// Start launches the websocket hub and registers its shutdown
func (c *Kernel) Start() {
	hub := c.Hub()
	go hub.Run()
	c.OnCleanup(hub.Shutdown)
}
