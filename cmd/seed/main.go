package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/database"
	"github.com/seiixin/gunwadex/internal/kernel"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/seed"
	"go.uber.org/zap"
)

func main() {
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	switch command {
	case "dev", "test", "clean":
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all data (use with caution)")
		fmt.Println("SEED=<n> makes runs reproducible (default 42)")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.LogLevel, "-"); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx := context.Background()
	k, err := kernel.Bootstrap(ctx, cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize services", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = k.Cleanup(cleanupCtx)
	}()

	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}

	seedValue := int64(42)
	if raw := os.Getenv("SEED"); raw != "" {
		if seedValue, err = strconv.ParseInt(raw, 10, 64); err != nil {
			logger.FatalWithFields("SEED must be an integer", err)
		}
	}
	seeder := seed.NewSeeder(k.DB(), seedValue, k.Search())

	var sum *seed.Summary
	switch command {
	case "dev":
		logger.Log.Info("Seeding development database...", zap.Int64("seed", seedValue))
		sum, err = seeder.SeedDev(ctx)
	case "test":
		logger.Log.Info("Seeding test database...", zap.Int64("seed", seedValue))
		sum, err = seeder.SeedTest(ctx)
	case "clean":
		logger.Log.Info("Cleaning database...")
		err = seeder.Clean(ctx)
	}
	if err != nil {
		logger.FatalWithFields("Seeding failed", err)
	}

	if sum != nil {
		logger.Log.Info("Database seeded",
			zap.Int("users", sum.Users),
			zap.Int("categories", sum.Categories),
			zap.Int("stories", sum.Stories),
			zap.Int("episodes", sum.Episodes),
			zap.Int("articles", sum.Articles),
			zap.Int("comments", sum.Comments),
			zap.Int("reactions", sum.Reactions),
		)
		return
	}
	logger.Log.Info("Database cleaned")
}
