package websocket

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
)

// Handler upgrades authenticated HTTP requests to WebSocket connections.
// It runs behind middleware.RequireAuth, which accepts ?token= for browsers.
type Handler struct {
	hub            *Hub
	originPatterns []string
	allowAnyOrigin bool
}

// NewHandler creates a handler that accepts the given CORS origins ("*" allows any)
func NewHandler(hub *Hub, origins []string) *Handler {
	h := &Handler{hub: hub}
	for _, o := range origins {
		if o == "*" {
			h.allowAnyOrigin = true
			continue
		}
		h.originPatterns = append(h.originPatterns, o)
	}
	return h
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.allowAnyOrigin,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", logger.WithUserID(user.ID), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, user.ID, user.IsAdmin())
	client.RemoteAddr = c.ClientIP()
	h.hub.Register(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event: "connected",
		Data: map[string]interface{}{
			"user_id":     user.ID,
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump()
}

// HandleStats reports hub counters (admin)
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.GetStats())
}
