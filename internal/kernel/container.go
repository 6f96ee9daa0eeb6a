// Package kernel owns the GunwaDex dependency graph: infrastructure clients,
// domain services and the HTTP handlers built on top of them.
package kernel

import (
	"context"
	"sync"

	"github.com/seiixin/gunwadex/internal/auth"
	"github.com/seiixin/gunwadex/internal/cache"
	"github.com/seiixin/gunwadex/internal/chat"
	"github.com/seiixin/gunwadex/internal/comments"
	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/contact"
	"github.com/seiixin/gunwadex/internal/content"
	"github.com/seiixin/gunwadex/internal/email"
	"github.com/seiixin/gunwadex/internal/engagement"
	"github.com/seiixin/gunwadex/internal/handlers"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/moderation"
	"github.com/seiixin/gunwadex/internal/search"
	"github.com/seiixin/gunwadex/internal/storage"
	"github.com/seiixin/gunwadex/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds every application dependency.
// Infrastructure is registered with the Set*/With* methods, then Wire builds
// the services, the websocket hub and the handlers from it.
type Kernel struct {
	// Core infrastructure
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
	cache  *cache.RedisClient
	store  storage.AttachmentStore
	mailer email.Mailer
	search *search.Client

	// Domain services
	auth       *auth.Service
	content    *content.Service
	comments   *comments.Service
	engagement *engagement.Service
	chat       *chat.Service
	contact    *contact.Service
	moderation *moderation.Service
	searchSvc  *search.Service

	// Transport
	hub       *websocket.Hub
	wsHandler *websocket.Handler
	handlers  *handlers.Handlers

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates an empty kernel
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// ============================================================================
// INFRASTRUCTURE
// ============================================================================

// SetConfig registers the loaded configuration
func (c *Kernel) SetConfig(cfg *config.Config) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	return c
}

// Config returns the configuration
func (c *Kernel) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// SetDB registers the database connection
func (c *Kernel) SetDB(db *gorm.DB) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// DB returns the database connection
func (c *Kernel) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SetLogger registers the logger
func (c *Kernel) SetLogger(l *zap.Logger) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
	return c
}

// Logger returns the registered logger, falling back to the global one
func (c *Kernel) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return logger.Log
	}
	return c.logger
}

// SetCache registers the Redis client; nil disables Redis-backed features
func (c *Kernel) SetCache(client *cache.RedisClient) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = client
	return c
}

// Cache returns the Redis client, or nil
func (c *Kernel) Cache() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

// SetStore registers the chat attachment store
func (c *Kernel) SetStore(store storage.AttachmentStore) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
	return c
}

// Store returns the chat attachment store
func (c *Kernel) Store() storage.AttachmentStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// SetMailer registers the outbound mailer
func (c *Kernel) SetMailer(m email.Mailer) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mailer = m
	return c
}

// Mailer returns the outbound mailer
func (c *Kernel) Mailer() email.Mailer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mailer
}

// SetSearchClient registers the Elasticsearch client; nil means database search
func (c *Kernel) SetSearchClient(client *search.Client) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = client
	return c
}

// SearchClient returns the Elasticsearch client, or nil
func (c *Kernel) SearchClient() *search.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.search
}

// ============================================================================
// SERVICES
// ============================================================================

// Auth returns the auth service
func (c *Kernel) Auth() *auth.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// Content returns the content service
func (c *Kernel) Content() *content.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.content
}

// Comments returns the comment service
func (c *Kernel) Comments() *comments.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.comments
}

// Engagement returns the engagement service
func (c *Kernel) Engagement() *engagement.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engagement
}

// Chat returns the support chat service
func (c *Kernel) Chat() *chat.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chat
}

// Contact returns the contact service
func (c *Kernel) Contact() *contact.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contact
}

// Moderation returns the moderation service
func (c *Kernel) Moderation() *moderation.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.moderation
}

// Search returns the search service
func (c *Kernel) Search() *search.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.searchSvc
}

// Hub returns the websocket hub
func (c *Kernel) Hub() *websocket.Hub {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hub
}

// WebSocket returns the websocket upgrade handler
func (c *Kernel) WebSocket() *websocket.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsHandler
}

// Handlers returns the HTTP handlers
func (c *Kernel) Handlers() *handlers.Handlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

// Wire builds the services, hub and handlers from the registered
// infrastructure. It fails if a required dependency is missing.
func (c *Kernel) Wire() error {
	if err := c.validateInfrastructure(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	mailCfg := config.MailConfig{}
	authCfg := config.AuthConfig{}
	var origins []string
	if c.cfg != nil {
		mailCfg = c.cfg.Mail
		authCfg = c.cfg.Auth
		origins = c.cfg.CORSOrigins
	}

	c.hub = websocket.NewHub()
	c.wsHandler = websocket.NewHandler(c.hub, origins)

	c.auth = auth.NewService(c.db, authCfg.JWTSecret, authCfg.TokenTTL)
	c.comments = comments.NewService(c.db)
	c.searchSvc = search.NewService(c.db, c.search, c.cache)
	c.content = content.NewService(c.db, c.comments, c.searchSvc)
	c.engagement = engagement.NewService(c.db, c.cache)
	c.chat = chat.NewService(c.db, c.store, c.hub)
	c.contact = contact.NewService(c.db, c.mailer, mailCfg)
	c.moderation = moderation.NewService(c.db, c.comments)

	c.handlers = handlers.NewHandlers(handlers.Services{
		DB:         c.db,
		Auth:       c.auth,
		Content:    c.content,
		Comments:   c.comments,
		Engagement: c.engagement,
		Chat:       c.chat,
		Contact:    c.contact,
		Moderation: c.moderation,
		Search:     c.searchSvc,
	})
	return nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions run in LIFO order.
func (c *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup runs every registered cleanup function, newest first.
// Failures are logged and the remaining functions still run; the first
// error is returned.
func (c *Kernel) Cleanup(ctx context.Context) error {
	log := c.Logger()

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	var first error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// ============================================================================
// VALIDATION
// ============================================================================

func (c *Kernel) validateInfrastructure() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}
	if c.db == nil {
		missingDeps = append(missingDeps, "database (DB)")
	}
	if c.store == nil {
		missingDeps = append(missingDeps, "attachment store")
	}
	if c.mailer == nil {
		missingDeps = append(missingDeps, "mailer")
	}
	if c.cfg != nil && len(c.cfg.Auth.JWTSecret) == 0 {
		missingDeps = append(missingDeps, "JWT secret")
	}

	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}
	return nil
}

// Validate checks that the kernel is fully wired.
// Call it after Wire and before serving requests.
func (c *Kernel) Validate() error {
	if err := c.validateInfrastructure(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.handlers == nil || c.hub == nil {
		return NewInitializationError("Kernel not wired", []string{"services"})
	}

	optionalDeps := []struct {
		name  string
		value bool
	}{
		{"Redis cache", c.cache != nil},
		{"Elasticsearch search", c.search != nil},
	}
	for _, dep := range optionalDeps {
		if !dep.value {
			logger.Log.Info("Optional dependency disabled", zap.String("dependency", dep.name))
		}
	}
	return nil
}

// ============================================================================
// FLUENT API SUPPORT
// ============================================================================

// WithConfig is a fluent setter for the configuration
func (c *Kernel) WithConfig(cfg *config.Config) *Kernel {
	return c.SetConfig(cfg)
}

// WithDB is a fluent setter for database
func (c *Kernel) WithDB(db *gorm.DB) *Kernel {
	return c.SetDB(db)
}

// WithLogger is a fluent setter for logger
func (c *Kernel) WithLogger(l *zap.Logger) *Kernel {
	return c.SetLogger(l)
}

// WithCache is a fluent setter for cache
func (c *Kernel) WithCache(client *cache.RedisClient) *Kernel {
	return c.SetCache(client)
}

// WithStore is a fluent setter for the attachment store
func (c *Kernel) WithStore(store storage.AttachmentStore) *Kernel {
	return c.SetStore(store)
}

// WithMailer is a fluent setter for the mailer
func (c *Kernel) WithMailer(m email.Mailer) *Kernel {
	return c.SetMailer(m)
}

// WithSearchClient is a fluent setter for Elasticsearch
func (c *Kernel) WithSearchClient(client *search.Client) *Kernel {
	return c.SetSearchClient(client)
}
