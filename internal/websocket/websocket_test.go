package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.admins)
	assert.False(t, hub.IsUserOnline("user-123"))
	assert.Contains(t, hub.GetStats().String(), "connections=0/0")
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("test_error", "Something went wrong")
	assert.Equal(t, MessageTypeError, msg.Type)

	payload, ok := msg.Payload.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "test_error", payload.Code)
}

func TestMessageParsePayload(t *testing.T) {
	msg := NewMessage(MessageTypePing, map[string]interface{}{"client_time": float64(1234567890)})

	var ping PingPayload
	require.NoError(t, msg.ParsePayload(&ping))
	assert.Equal(t, int64(1234567890), ping.ClientTime)
}

// startServer serves the websocket handler with users injected from X-User-ID / X-Role
func startServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		role := models.RoleUser
		if c.GetHeader("X-Role") == "admin" {
			role = models.RoleAdmin
		}
		c.Set("user", &models.User{ID: c.GetHeader("X-User-ID"), Role: role})
		c.Next()
	}, NewHandler(hub, []string{"*"}).HandleWebSocket)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID, role string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := map[string][]string{"X-User-ID": {userID}, "X-Role": {role}}
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	// welcome frame
	msg := read(t, conn)
	require.Equal(t, MessageTypeSystem, msg.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestPublishChatMessageReachesOwnerAndAdmins(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	srv := startServer(t, hub)

	owner := dial(t, srv, "owner-1", "user")
	admin := dial(t, srv, "admin-1", "admin")
	stranger := dial(t, srv, "someone-else", "user")
	require.Eventually(t, func() bool { return hub.GetStats().ActiveConnections == 3 }, 2*time.Second, 10*time.Millisecond)

	hub.PublishChatMessage("owner-1", &models.ChatMessage{ID: "m1", ConversationID: "c1", Body: "hello"})

	for _, conn := range []*websocket.Conn{owner, admin} {
		msg := read(t, conn)
		assert.Equal(t, MessageTypeChatMessage, msg.Type)
		var payload ChatMessagePayload
		require.NoError(t, msg.ParsePayload(&payload))
		assert.Equal(t, "c1", payload.ConversationID)
		assert.Equal(t, "hello", payload.Message.Body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err := stranger.Read(ctx)
	assert.Error(t, err, "other users receive nothing")
}

func TestPingPong(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	conn := dial(t, startServer(t, hub), "u1", "user")

	ping, _ := json.Marshal(Message{Type: MessageTypePing, ID: "p1", Payload: PingPayload{ClientTime: 1}})
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, ping))

	msg := read(t, conn)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.Equal(t, "p1", msg.ReplyTo)
}
