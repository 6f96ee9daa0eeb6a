// Package chat implements support conversations between users and admins,
// with optional file attachments on each message.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/metrics"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/storage"
	"github.com/seiixin/gunwadex/internal/telemetry"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MaxAttachmentSize = 10 << 20
	MaxBodyLength     = 5000
	MaxSubjectLength  = 150
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".pdf": true, ".txt": true, ".doc": true, ".docx": true, ".zip": true,
}

// Attachment is an uploaded file waiting to be stored with a message
type Attachment struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Sender identifies who is writing or reading
type Sender struct {
	UserID string
	Role   models.SenderRole
}

func (s Sender) isAdmin() bool { return s.Role == models.SenderAdmin }

// Publisher pushes committed messages to connected clients
type Publisher interface {
	PublishChatMessage(ownerID string, msg *models.ChatMessage)
}

// Service runs every chat read and write
type Service struct {
	db        *gorm.DB
	store     storage.AttachmentStore
	publisher Publisher
	now       func() time.Time
}

// NewService creates the chat service. publisher may be nil.
func NewService(db *gorm.DB, store storage.AttachmentStore, publisher Publisher) *Service {
	return &Service{
		db:        db,
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ConversationSummary is a conversation with the caller's unread flag
type ConversationSummary struct {
	models.ChatConversation
	Unread bool `json:"unread"`
}

func validateAttachment(att *Attachment) error {
	if att == nil {
		return nil
	}
	if err := util.ValidateFilename(att.Filename); err != nil {
		return apierrors.ValidationError("attachment", err.Error())
	}
	ext := strings.ToLower(filepath.Ext(att.Filename))
	if !allowedExtensions[ext] {
		return apierrors.ValidationError("attachment", "file type not allowed")
	}
	if att.Size > MaxAttachmentSize {
		return apierrors.PayloadTooLarge("attachment exceeds 10 MB")
	}
	return nil
}

func validateMessage(body string, att *Attachment) (string, error) {
	body, err := util.ValidateLength(body, 0, MaxBodyLength)
	if err != nil {
		return "", apierrors.ValidationError("body", "body "+err.Error())
	}
	if body == "" && att == nil {
		return "", apierrors.ValidationError("body", "body is required without an attachment")
	}
	return body, validateAttachment(att)
}

// Start opens a conversation and sends its first message in one transaction
func (s *Service) Start(ctx context.Context, userID, subject, body string, att *Attachment) (*models.ChatConversation, *models.ChatMessage, error) {
	subject, err := util.ValidateLength(subject, 1, MaxSubjectLength)
	if err != nil {
		return nil, nil, apierrors.ValidationError("subject", "subject "+err.Error())
	}
	if body, err = validateMessage(body, att); err != nil {
		return nil, nil, err
	}

	conv := &models.ChatConversation{UserID: userID, Subject: subject, Status: models.ConversationOpen}
	sender := Sender{UserID: userID, Role: models.SenderUser}

	var msg *models.ChatMessage
	err = s.withStoredFiles(ctx, func(tx *gorm.DB, stored *[]string) error {
		if err := tx.Create(conv).Error; err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		var err error
		msg, err = s.send(ctx, tx, conv, sender, body, att, stored)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.published(conv, msg)
	return conv, msg, nil
}

// SendMessage appends a message to a conversation. Users may only write to
// their own open conversations; an admin reply re-opens a closed one.
func (s *Service) SendMessage(ctx context.Context, sender Sender, conversationID, body string, att *Attachment) (msg *models.ChatMessage, err error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.send_message",
		telemetry.ConversationAttr(conversationID), telemetry.UserAttr(sender.UserID))
	defer func() { telemetry.EndSpan(span, err) }()

	if body, err = validateMessage(body, att); err != nil {
		return nil, err
	}

	var conv *models.ChatConversation
	err = s.withStoredFiles(ctx, func(tx *gorm.DB, stored *[]string) error {
		var err error
		if conv, err = s.load(tx, sender, conversationID); err != nil {
			return err
		}
		if conv.Status == models.ConversationClosed && !sender.isAdmin() {
			return apierrors.Conflict("conversation is closed")
		}
		msg, err = s.send(ctx, tx, conv, sender, body, att, stored)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.published(conv, msg)
	return msg, nil
}

// withStoredFiles runs fn in a transaction and deletes every file fn stored
// if the transaction does not commit
func (s *Service) withStoredFiles(ctx context.Context, fn func(tx *gorm.DB, stored *[]string) error) error {
	var stored []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, &stored)
	})
	if err != nil {
		s.deleteFiles(ctx, stored)
	}
	return err
}

func (s *Service) deleteFiles(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
			logger.Log.Warn("Failed to delete chat attachment", zap.String("key", key), zap.Error(err))
		}
	}
}

// send is the body of the send transaction: message row, attachment, conversation markers
func (s *Service) send(ctx context.Context, tx *gorm.DB, conv *models.ChatConversation, sender Sender, body string, att *Attachment, stored *[]string) (*models.ChatMessage, error) {
	now := s.now()
	msg := &models.ChatMessage{
		ConversationID: conv.ID,
		SenderID:       sender.UserID,
		SenderRole:     sender.Role,
		Body:           body,
		CreatedAt:      now,
	}
	if err := tx.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	if att != nil {
		ext := strings.ToLower(filepath.Ext(att.Filename))
		key := storage.ChatAttachmentKey(conv.ID, msg.ID, now, att.Filename)
		contentType := storage.ContentTypeFor(ext)

		if err := s.store.Put(ctx, key, io.LimitReader(att.Body, MaxAttachmentSize+1), att.Size, contentType); err != nil {
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		*stored = append(*stored, key)

		msg.AttachmentPath = key
		msg.AttachmentName = filepath.Base(att.Filename)
		msg.AttachmentMIME = contentType
		msg.AttachmentSize = att.Size
		if err := tx.Model(msg).Updates(map[string]interface{}{
			"attachment_path": msg.AttachmentPath,
			"attachment_name": msg.AttachmentName,
			"attachment_mime": msg.AttachmentMIME,
			"attachment_size": msg.AttachmentSize,
		}).Error; err != nil {
			return nil, fmt.Errorf("record attachment: %w", err)
		}
		metrics.Get().ChatAttachmentBytes.Observe(float64(att.Size))
	}

	updates := map[string]interface{}{"last_message_at": now}
	if sender.isAdmin() {
		updates["admin_read_at"] = now
		updates["user_read_at"] = nil
		updates["status"] = models.ConversationOpen
	} else {
		updates["user_read_at"] = now
		updates["admin_read_at"] = nil
	}
	if err := tx.Model(&models.ChatConversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	conv.LastMessageAt = &now
	if sender.isAdmin() {
		conv.AdminReadAt, conv.UserReadAt, conv.Status = &now, nil, models.ConversationOpen
	} else {
		conv.UserReadAt, conv.AdminReadAt = &now, nil
	}
	return msg, nil
}

func (s *Service) published(conv *models.ChatConversation, msg *models.ChatMessage) {
	metrics.Get().ChatMessagesTotal.WithLabelValues(string(msg.SenderRole), strconv.FormatBool(msg.HasAttachment())).Inc()
	logger.Log.Debug("Chat message sent",
		logger.WithConversationID(conv.ID),
		zap.String("sender_role", string(msg.SenderRole)),
		zap.Bool("attachment", msg.HasAttachment()),
	)
	if s.publisher != nil {
		s.publisher.PublishChatMessage(conv.UserID, msg)
	}
}

// load finds a conversation the sender may access
func (s *Service) load(db *gorm.DB, viewer Sender, conversationID string) (*models.ChatConversation, error) {
	var conv models.ChatConversation
	if err := db.First(&conv, "id = ?", conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("conversation")
		}
		return nil, err
	}
	if !viewer.isAdmin() && conv.UserID != viewer.UserID {
		return nil, apierrors.Forbidden("not your conversation")
	}
	return &conv, nil
}

// List returns the user's conversations, most recent activity first
func (s *Service) List(ctx context.Context, userID string, page util.Page) ([]ConversationSummary, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ChatConversation{}).Where("user_id = ?", userID)
	return s.summaries(q, models.SenderUser, page)
}

// AdminFilter narrows the admin conversation list
type AdminFilter struct {
	UnreadOnly bool
	Status     models.ConversationStatus
}

// AdminList returns every conversation, optionally only admin-unread ones
func (s *Service) AdminList(ctx context.Context, filter AdminFilter, page util.Page) ([]ConversationSummary, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ChatConversation{})
	if filter.UnreadOnly {
		q = q.Where("admin_read_at IS NULL AND last_message_at IS NOT NULL")
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return s.summaries(q, models.SenderAdmin, page, "User")
}

func (s *Service) summaries(q *gorm.DB, side models.SenderRole, page util.Page, preloads ...string) ([]ConversationSummary, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	for _, p := range preloads {
		q = q.Preload(p)
	}
	var convs []models.ChatConversation
	err := q.Order("last_message_at DESC").Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&convs).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]ConversationSummary, len(convs))
	for i := range convs {
		out[i] = ConversationSummary{ChatConversation: convs[i], Unread: convs[i].UnreadFor(side)}
	}
	return out, total, nil
}

// Get returns a conversation with its messages and marks it read for the viewer's side
func (s *Service) Get(ctx context.Context, viewer Sender, conversationID string) (*models.ChatConversation, error) {
	db := s.db.WithContext(ctx)
	conv, err := s.load(db, viewer, conversationID)
	if err != nil {
		return nil, err
	}

	err = db.Preload("User").
		Preload("Messages", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		First(conv, "id = ?", conv.ID).Error
	if err != nil {
		return nil, err
	}

	now := s.now()
	column := "user_read_at"
	if viewer.isAdmin() {
		column = "admin_read_at"
	}
	if err := db.Model(&models.ChatConversation{}).Where("id = ?", conv.ID).UpdateColumn(column, now).Error; err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if viewer.isAdmin() {
		conv.AdminReadAt = &now
	} else {
		conv.UserReadAt = &now
	}
	return conv, nil
}

// SetStatus closes or re-opens a conversation (admin)
func (s *Service) SetStatus(ctx context.Context, conversationID string, status models.ConversationStatus) (*models.ChatConversation, error) {
	db := s.db.WithContext(ctx)
	conv, err := s.load(db, Sender{Role: models.SenderAdmin}, conversationID)
	if err != nil {
		return nil, err
	}
	if err := db.Model(conv).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	conv.Status = status
	return conv, nil
}

// UnreadCount is the number of conversations admins have not read
func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ChatConversation{}).
		Where("admin_read_at IS NULL AND last_message_at IS NOT NULL").
		Count(&n).Error
	return n, err
}

// DeleteMessage removes the sender's own message and its attachment
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	var msg models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierrors.NotFound("message")
			}
			return err
		}
		if msg.SenderID != userID {
			return apierrors.Forbidden("you can only delete your own messages")
		}
		if err := tx.Delete(&msg).Error; err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		return refreshLastMessage(tx, msg.ConversationID)
	})
	if err != nil {
		return err
	}
	if msg.HasAttachment() {
		s.deleteFiles(ctx, []string{msg.AttachmentPath})
	}
	return nil
}

// refreshLastMessage keeps last_message_at equal to the newest message's created_at
func refreshLastMessage(tx *gorm.DB, conversationID string) error {
	var newest models.ChatMessage
	err := tx.Where("conversation_id = ?", conversationID).Order("created_at DESC").Take(&newest).Error
	var last interface{}
	switch {
	case err == nil:
		last = newest.CreatedAt
	case errors.Is(err, gorm.ErrRecordNotFound):
		last = nil
	default:
		return err
	}
	return tx.Model(&models.ChatConversation{}).Where("id = ?", conversationID).
		UpdateColumn("last_message_at", last).Error
}

// DeleteConversation removes the user's conversation, its messages and attachments
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := s.load(tx, Sender{UserID: userID, Role: models.SenderUser}, conversationID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.ChatMessage{}).
			Where("conversation_id = ? AND attachment_path <> ''", conv.ID).
			Pluck("attachment_path", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&models.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return tx.Delete(conv).Error
	})
	if err != nil {
		return err
	}
	s.deleteFiles(ctx, keys)
	return nil
}

// OpenAttachment streams a message's attachment to its conversation owner or an admin
func (s *Service) OpenAttachment(ctx context.Context, viewer Sender, messageID string) (*models.ChatMessage, io.ReadCloser, error) {
	db := s.db.WithContext(ctx)
	var msg models.ChatMessage
	if err := db.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apierrors.NotFound("message")
		}
		return nil, nil, err
	}
	if _, err := s.load(db, viewer, msg.ConversationID); err != nil {
		return nil, nil, err
	}
	if !msg.HasAttachment() {
		return nil, nil, apierrors.NotFound("attachment")
	}

	rc, err := s.store.Open(ctx, msg.AttachmentPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, apierrors.NotFound("attachment")
	}
	if err != nil {
		return nil, nil, err
	}
	return &msg, rc, nil
}
