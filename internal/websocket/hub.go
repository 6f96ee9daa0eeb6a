// Package websocket pushes real-time chat events to connected clients.
// Uses github.com/coder/websocket - the modern, context-aware WebSocket library for Go.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/metrics"
	"github.com/seiixin/gunwadex/internal/models"
	"go.uber.org/zap"
)

// Hub maintains the set of active clients and routes messages to them.
type Hub struct {
	// Registered clients by user ID for targeted messaging
	clients map[string]map[*Client]struct{}

	// Clients of admin users, who receive every chat event
	admins map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery

	mu sync.RWMutex

	stats *Stats

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats tracks WebSocket counters
type Stats struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// delivery is a message for one user's connections and optionally all admins
type delivery struct {
	userID   string
	toAdmins bool
	message  *Message
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		admins:     make(map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		deliver:    make(chan delivery, 256),
		stats:      &Stats{},
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	logger.Log.Info("WebSocket hub starting")
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case d := <-h.deliver:
			h.dispatch(d)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	if client.IsAdmin {
		h.admins[client] = struct{}{}
	}

	h.stats.TotalConnections.Add(1)
	h.stats.ActiveConnections.Add(1)
	metrics.Get().WebsocketConnections.Inc()

	logger.Log.Debug("WebSocket client connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.stats.ActiveConnections.Load()))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.UserID)
	}
	delete(h.admins, client)
	client.closeSend()

	h.stats.ActiveConnections.Add(-1)
	metrics.Get().WebsocketConnections.Dec()

	logger.Log.Debug("WebSocket client disconnected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.stats.ActiveConnections.Load()))
}

// dispatch writes to every target connection once; full buffers drop the client
func (h *Hub) dispatch(d delivery) {
	data, err := json.Marshal(d.message)
	if err != nil {
		logger.Log.Error("Failed to marshal websocket message", zap.String("type", d.message.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*Client]struct{})
	for c := range h.clients[d.userID] {
		targets[c] = struct{}{}
	}
	if d.toAdmins {
		for c := range h.admins {
			targets[c] = struct{}{}
		}
	}

	for client := range targets {
		select {
		case client.send <- data:
			h.stats.MessagesSent.Add(1)
		default:
			h.stats.ConnectionsDropped.Add(1)
			go h.Unregister(client)
		}
	}
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliver <- d:
	case <-h.ctx.Done():
	}
}

// SendToUser sends a message to all connections of a user
func (h *Hub) SendToUser(userID string, message *Message) {
	h.enqueue(delivery{userID: userID, message: message})
}

// PublishChatMessage pushes a committed chat message to the conversation
// owner and every connected admin
func (h *Hub) PublishChatMessage(ownerID string, msg *models.ChatMessage) {
	h.enqueue(delivery{
		userID:   ownerID,
		toAdmins: true,
		message: NewMessage(MessageTypeChatMessage, ChatMessagePayload{
			ConversationID: msg.ConversationID,
			OwnerID:        ownerID,
			Message:        msg,
		}),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// IsUserOnline checks if a user has any active connections
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// GetStats returns current WebSocket counters
func (h *Hub) GetStats() StatsSnapshot {
	return StatsSnapshot{
		TotalConnections:   h.stats.TotalConnections.Load(),
		ActiveConnections:  h.stats.ActiveConnections.Load(),
		MessagesReceived:   h.stats.MessagesReceived.Load(),
		MessagesSent:       h.stats.MessagesSent.Load(),
		Errors:             h.stats.Errors.Load(),
		ConnectionsDropped: h.stats.ConnectionsDropped.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

func (m StatsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections,
		m.MessagesReceived, m.MessagesSent,
		m.Errors, m.ConnectionsDropped,
	)
}

// Shutdown stops the event loop and closes every client
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, _ := json.Marshal(NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"}))
	n := 0
	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
			}
			client.closeSend()
			n++
		}
	}
	metrics.Get().WebsocketConnections.Sub(float64(n))

	h.clients = make(map[string]map[*Client]struct{})
	h.admins = make(map[*Client]struct{})
	logger.Log.Info("WebSocket hub stopped", zap.Int("closed_connections", n))
}
