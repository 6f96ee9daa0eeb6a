// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the API server and tools
type Config struct {
	Environment string
	Port        string
	Debug       bool

	LogLevel string
	LogFile  string

	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Mail     MailConfig
	Search   SearchConfig
	Tracing  TracingConfig
	Limits   LimitsConfig

	CORSOrigins []string
	// TrustedProxies are the IPs/CIDRs allowed to set X-Forwarded-For
	TrustedProxies []string
}

// DatabaseConfig selects the gorm dialect and DSN
type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	URL    string
}

// AuthConfig holds JWT settings
type AuthConfig struct {
	JWTSecret []byte
	TokenTTL  time.Duration
}

// RedisConfig is optional; an empty Host disables Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// StorageConfig selects where chat attachments are written
type StorageConfig struct {
	Backend    string // "local" or "s3"
	LocalDir   string
	AWSRegion  string
	Bucket     string
	CDNBaseURL string
}

// MailConfig selects the outbound mail transport
type MailConfig struct {
	Backend      string // "ses" or "log"
	AWSRegion    string
	FromEmail    string
	FromName     string
	ContactInbox string
	SiteName     string
}

// SearchConfig is optional; an empty URL falls back to database search
type SearchConfig struct {
	ElasticsearchURL string
	Username         string
	Password         string
	Index            string
}

// TracingConfig configures the OTLP exporter
type TracingConfig struct {
	Enabled      bool
	Endpoint     string
	SamplingRate float64
}

// LimitsConfig holds per-route rate limits (requests per minute per IP)
type LimitsConfig struct {
	ViewsPerMinute   int
	ContactPerMinute int
	DefaultPerMinute int
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnvOrDefault("ENVIRONMENT", "development")

	cfg := &Config{
		Environment: env,
		Port:        getEnvOrDefault("PORT", "8080"),
		Debug:       getBool("APP_DEBUG", env == "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "server.log"),
		Database: DatabaseConfig{
			Driver: getEnvOrDefault("DB_DRIVER", "sqlite"),
			URL:    os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: []byte(os.Getenv("JWT_SECRET")),
			TokenTTL:  getDuration("JWT_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Storage: StorageConfig{
			Backend:    getEnvOrDefault("STORAGE_BACKEND", "local"),
			LocalDir:   getEnvOrDefault("STORAGE_DIR", "storage/app"),
			AWSRegion:  getEnvOrDefault("AWS_REGION", "us-east-1"),
			Bucket:     os.Getenv("AWS_BUCKET"),
			CDNBaseURL: os.Getenv("CDN_BASE_URL"),
		},
		Mail: MailConfig{
			Backend:      getEnvOrDefault("MAIL_BACKEND", "log"),
			AWSRegion:    getEnvOrDefault("AWS_REGION", "us-east-1"),
			FromEmail:    getEnvOrDefault("MAIL_FROM_ADDRESS", "no-reply@gunwadex.local"),
			FromName:     getEnvOrDefault("MAIL_FROM_NAME", "GunwaDex"),
			ContactInbox: os.Getenv("CONTACT_INBOX"),
			SiteName:     getEnvOrDefault("SITE_NAME", "GunwaDex"),
		},
		Search: SearchConfig{
			ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
			Username:         os.Getenv("ELASTICSEARCH_USERNAME"),
			Password:         os.Getenv("ELASTICSEARCH_PASSWORD"),
			Index:            getEnvOrDefault("ELASTICSEARCH_INDEX", "gunwadex-content"),
		},
		Tracing: TracingConfig{
			Enabled:      getBool("OTEL_ENABLED", false),
			Endpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SamplingRate: getFloat("OTEL_SAMPLING_RATE", 1.0),
		},
		Limits: LimitsConfig{
			ViewsPerMinute:   getInt("RATE_LIMIT_VIEWS", 60),
			ContactPerMinute: getInt("RATE_LIMIT_CONTACT", 5),
			DefaultPerMinute: getInt("RATE_LIMIT_DEFAULT", 300),
		},
		CORSOrigins:    splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = defaultDatabaseURL(cfg.Database.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) == 0 {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("AWS_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (want local or s3)", c.Storage.Backend)
	}
	switch c.Mail.Backend {
	case "log", "ses":
	default:
		return fmt.Errorf("unsupported MAIL_BACKEND %q (want ses or log)", c.Mail.Backend)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultDatabaseURL(driver string) string {
	if driver == "sqlite" {
		return getEnvOrDefault("DB_PATH", "gunwadex.db")
	}

	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "")
	dbname := getEnvOrDefault("DB_NAME", "gunwadex")
	sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
