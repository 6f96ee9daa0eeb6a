package database

import (
	"fmt"
	"time"

	"github.com/seiixin/gunwadex/internal/config"
	applogger "github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection
func Initialize(cfg *config.Config) error {
	level := logger.Warn
	if cfg.Environment == "development" {
		level = logger.Info
	}

	db, err := Open(cfg.Database.Driver, cfg.Database.URL, level)
	if err != nil {
		return err
	}

	if cfg.Tracing.Enabled {
		system := "sqlite"
		if cfg.Database.Driver == "postgres" {
			system = "postgresql"
		}
		if err := db.Use(telemetry.GORMTracingPlugin(system)); err != nil {
			return fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	if cfg.Database.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	DB = db
	applogger.Log.Info("Database connected", zap.String("driver", cfg.Database.Driver))
	return nil
}

// Open connects to the given driver without touching the package global.
// Duplicate-key violations are translated to gorm.ErrDuplicatedKey.
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(zap.NewStdLog(applogger.Log), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Models lists every table owned by the service, in dependency order
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Category{},
		&models.Story{},
		&models.Episode{},
		&models.EpisodeAsset{},
		&models.Article{},
		&models.Comment{},
		&models.Reaction{},
		&models.Favorite{},
		&models.Rating{},
		&models.StoryView{},
		&models.ChatConversation{},
		&models.ChatMessage{},
		&models.ContactSetting{},
	}
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return MigrateDB(DB)
}

// MigrateDB migrates an explicit connection
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	applogger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes creates the read-path indexes that struct tags can't express
func createIndexes(db *gorm.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))",
		"CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))",

		"CREATE INDEX IF NOT EXISTS idx_stories_status_published ON stories (status, published_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_stories_status_likes ON stories (status, like_count DESC)",
		"CREATE INDEX IF NOT EXISTS idx_articles_status_published ON articles (status, published_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_comments_target_created ON comments (target_type, target_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_comments_parent_created ON comments (parent_id, created_at)",

		"CREATE INDEX IF NOT EXISTS idx_story_views_target_user ON story_views (target_type, target_id, user_id, viewed_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_story_views_target_ip ON story_views (target_type, target_id, ip_address, viewed_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_chat_conversations_user_last ON chat_conversations (user_id, last_message_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation_created ON chat_messages (conversation_id, created_at)",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}
