package websocket

import (
	"encoding/json"
	"time"

	"github.com/seiixin/gunwadex/internal/models"
)

// Message types pushed to or accepted from clients
const (
	MessageTypeSystem = "system"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"

	MessageTypeChatMessage = "chat.message"
)

// Message is the envelope of every frame
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ID        string      `json:"id,omitempty"`
	ReplyTo   string      `json:"reply_to,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(code string, message string) *Message {
	return NewMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

// ParsePayload re-decodes the generic payload into target
func (m *Message) ParsePayload(target interface{}) error {
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// ChatMessagePayload is pushed to the conversation owner and to admins
// whenever a chat message is committed
type ChatMessagePayload struct {
	ConversationID string              `json:"conversation_id"`
	OwnerID        string              `json:"owner_id"`
	Message        *models.ChatMessage `json:"message"`
}
