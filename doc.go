// Package gunwadex is the GunwaDex API: a publishing and engagement platform
// for serialized stories, episodes and articles.
//
// The code is organized into subpackages:
//
//   - cmd/server: HTTP API entry point
//   - cmd/migrate, cmd/seed: schema migration and fixture data
//   - cmd/cli: operator tooling (roles, bans, contact settings, search index)
//   - internal/kernel: dependency wiring and shutdown
//   - internal/handlers: HTTP request handlers and route table
//   - internal/models: database schema
//   - internal/auth: registration, login and JWT validation
//   - internal/content: stories, episodes, articles and categories
//   - internal/comments, internal/engagement: comments, reactions, favorites, ratings and views
//   - internal/chat: support conversations with attachments
//   - internal/contact: contact form and settings
//   - internal/moderation: bans, roles and comment moderation
//   - internal/search: Elasticsearch index with a database fallback
//   - internal/websocket: realtime chat delivery
//   - internal/storage, internal/email: attachment storage and outbound mail
//
// See the individual package documentation for details.
package gunwadex
