package main

import (
	"fmt"
	"os"

	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/database"
	"github.com/seiixin/gunwadex/internal/logger"
	"go.uber.org/zap"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up", "status":
	default:
		fmt.Println("Usage: migrate [up|status]")
		fmt.Println("  up     - Create or update every table and index")
		fmt.Println("  status - Report which tables exist")
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

	if err := database.Initialize(cfg); err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close()

	switch command {
	case "up":
		logger.Log.Info("Running migrations...")
		if err := database.Migrate(); err != nil {
			logger.FatalWithFields("Migration failed", err)
		}
		logger.Log.Info("All migrations completed successfully")
	case "status":
		missing := 0
		migrator := database.DB.Migrator()
		for _, m := range database.Models() {
			exists := migrator.HasTable(m)
			if !exists {
				missing++
			}
			logger.Log.Info("Table", zap.String("model", fmt.Sprintf("%T", m)), zap.Bool("exists", exists))
		}
		if missing > 0 {
			logger.Log.Warn("Schema is behind; run `migrate up`", zap.Int("missing_tables", missing))
			os.Exit(2)
		}
	}
}
