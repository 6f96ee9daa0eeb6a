package models

import (
	"time"

	"gorm.io/gorm"
)

// ConversationStatus is open until an admin closes it
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// SenderRole tells which side of a support conversation wrote a message
type SenderRole string

const (
	SenderUser  SenderRole = "user"
	SenderAdmin SenderRole = "admin"
)

// ChatConversation is a support thread between one user and the admins.
// A nil AdminReadAt means admins have not read the newest user message.
type ChatConversation struct {
	ID            string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string             `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User          *User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Subject       string             `gorm:"not null" json:"subject"`
	Status        ConversationStatus `gorm:"type:varchar(16);not null;default:open;index" json:"status"`
	LastMessageAt *time.Time         `gorm:"index" json:"last_message_at"`
	UserReadAt    *time.Time         `json:"user_read_at"`
	AdminReadAt   *time.Time         `json:"admin_read_at"`

	Messages []ChatMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnreadFor reports whether the given side has an unread message
func (c *ChatConversation) UnreadFor(role SenderRole) bool {
	if c.LastMessageAt == nil {
		return false
	}
	if role == SenderAdmin {
		return c.AdminReadAt == nil
	}
	return c.UserReadAt == nil
}

// ChatMessage is one message in a conversation, optionally carrying one attachment
type ChatMessage struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string     `gorm:"type:varchar(36);not null" json:"conversation_id"`
	SenderID       string     `gorm:"type:varchar(36);not null;index" json:"sender_id"`
	SenderRole     SenderRole `gorm:"type:varchar(16);not null" json:"sender_role"`
	Body           string     `gorm:"type:text" json:"body"`

	AttachmentPath string `gorm:"type:text" json:"-"`
	AttachmentName string `json:"attachment_name,omitempty"`
	AttachmentMIME string `gorm:"column:attachment_mime" json:"attachment_mime,omitempty"`
	AttachmentSize int64  `json:"attachment_size,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (m *ChatMessage) HasAttachment() bool {
	return m.AttachmentPath != ""
}

func (c *ChatConversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	if c.Status == "" {
		c.Status = ConversationOpen
	}
	return nil
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}
