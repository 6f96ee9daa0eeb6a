package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/seiixin/gunwadex/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pings, so inbound frames stay small
	maxMessageSize = 4 * 1024

	sendBufferSize = 64

	// Inbound message budget per connection
	messagesPerSecond = 5
	messageBurst      = 10
)

// Client represents a single WebSocket connection
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	UserID  string
	IsAdmin bool

	// Buffered channel of outbound messages, closed by the hub
	send chan []byte

	ConnectedAt time.Time
	RemoteAddr  string

	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	sendClosed bool
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, userID string, isAdmin bool) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:         hub,
		conn:        conn,
		UserID:      userID,
		IsAdmin:     isAdmin,
		send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now().UTC(),
		limiter:     rate.NewLimiter(rate.Limit(messagesPerSecond), messageBurst),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ReadPump reads client frames until the connection closes
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		readCtx, readCancel := context.WithTimeout(c.ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && c.ctx.Err() == nil {
				logger.Log.Debug("WebSocket read ended", logger.WithUserID(c.UserID), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError("rate_limited", "Too many messages, please slow down")
			c.hub.stats.Errors.Add(1)
			continue
		}
		c.hub.stats.MessagesReceived.Add(1)

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			c.sendError("invalid_json", "Failed to parse message")
			continue
		}
		c.handleMessage(&message)
	}
}

// WritePump writes queued messages and keepalive pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				logger.Log.Debug("WebSocket write failed", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.stats.Errors.Add(1)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message *Message) {
	switch message.Type {
	case MessageTypePing:
		var ping PingPayload
		_ = message.ParsePayload(&ping)
		serverTime := time.Now().UnixMilli()
		pong := NewMessage(MessageTypePong, PongPayload{
			ClientTime: ping.ClientTime,
			ServerTime: serverTime,
			Latency:    serverTime - ping.ClientTime,
		})
		pong.ReplyTo = message.ID
		_ = c.Send(pong)
	default:
		c.sendError("unknown_type", "Unknown message type: "+message.Type)
	}
}

// Send queues a message for this client
func (c *Client) Send(message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.sendClosed {
		return errors.New("client connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// closeSend is called by the hub goroutine once it stops delivering to c
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

func (c *Client) sendError(code, message string) {
	_ = c.Send(NewErrorMessage(code, message))
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "closing")
}
