// Package moderation implements admin actions on users and comments.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seiixin/gunwadex/internal/comments"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service runs moderation actions
type Service struct {
	db       *gorm.DB
	comments *comments.Service
	now      func() time.Time
}

func NewService(db *gorm.DB, comments *comments.Service) *Service {
	return &Service{db: db, comments: comments, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) user(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

// FindUser resolves an id, username or email (case-insensitive)
func (s *Service) FindUser(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	var u models.User
	err := s.db.WithContext(ctx).
		Where("id = ? OR LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", ref, ref, ref).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFound("user")
	}
	return &u, err
}

// Ban suspends a user. Admins cannot ban themselves or other admins.
// An empty actorID means the action comes from the operator CLI.
func (s *Service) Ban(ctx context.Context, actorID, userID, reason string) (*models.User, error) {
	if actorID != "" && actorID == userID {
		return nil, apierrors.Forbidden("you cannot ban yourself")
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsAdmin() {
		return nil, apierrors.Forbidden("admins cannot be banned")
	}
	reason, err = util.ValidateLength(reason, 0, 500)
	if err != nil {
		return nil, apierrors.ValidationError("reason", "reason "+err.Error())
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(u).Updates(map[string]interface{}{
		"is_banned":  true,
		"banned_at":  now,
		"ban_reason": reason,
	}).Error; err != nil {
		return nil, fmt.Errorf("ban user: %w", err)
	}

	logger.Log.Info("User banned", logger.WithUserID(u.ID), zap.String("actor_id", actorID), zap.String("reason", reason))
	u.IsBanned, u.BannedAt, u.BanReason = true, &now, reason
	return u, nil
}

// Unban lifts a suspension
func (s *Service) Unban(ctx context.Context, actorID, userID string) (*models.User, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Updates(map[string]interface{}{
		"is_banned":  false,
		"banned_at":  nil,
		"ban_reason": "",
	}).Error; err != nil {
		return nil, fmt.Errorf("unban user: %w", err)
	}

	logger.Log.Info("User unbanned", logger.WithUserID(u.ID), zap.String("actor_id", actorID))
	u.IsBanned, u.BannedAt, u.BanReason = false, nil, ""
	return u, nil
}

// SetRole promotes or demotes a user. Admins cannot change their own role.
func (s *Service) SetRole(ctx context.Context, actorID, userID string, role models.Role) (*models.User, error) {
	if _, ok := models.ParseRole(string(role)); !ok {
		return nil, apierrors.ValidationError("role", "must be one of user, author, admin")
	}
	if actorID != "" && actorID == userID {
		return nil, apierrors.Forbidden("you cannot change your own role")
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}

	logger.Log.Info("User role changed", logger.WithUserID(u.ID), zap.String("role", string(role)), zap.String("actor_id", actorID))
	u.Role = role
	return u, nil
}

// UserFilter narrows ListUsers
type UserFilter struct {
	Query  string
	Banned *bool
	Role   models.Role
}

// ListUsers searches users by username or email, newest first
func (s *Service) ListUsers(ctx context.Context, filter UserFilter, page util.Page) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if query := strings.TrimSpace(filter.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?", like, like, like)
	}
	if filter.Banned != nil {
		q = q.Where("is_banned = ?", *filter.Banned)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC, id").Limit(page.Limit).Offset(page.Offset).Find(&users).Error
	return users, total, err
}

// HideComment hides a comment from public listings
func (s *Service) HideComment(ctx context.Context, commentID string) (*models.Comment, error) {
	return s.comments.SetHidden(ctx, commentID, true)
}

// UnhideComment restores a hidden comment
func (s *Service) UnhideComment(ctx context.Context, commentID string) (*models.Comment, error) {
	return s.comments.SetHidden(ctx, commentID, false)
}

// DeleteComment soft-deletes any comment
func (s *Service) DeleteComment(ctx context.Context, adminID, commentID string) error {
	return s.comments.Delete(ctx, adminID, true, commentID)
}

// Stats is a platform overview for operators
type Stats struct {
	Users               int64 `json:"users"`
	BannedUsers         int64 `json:"banned_users"`
	Stories             int64 `json:"stories"`
	Episodes            int64 `json:"episodes"`
	Articles            int64 `json:"articles"`
	Comments            int64 `json:"comments"`
	HiddenComments      int64 `json:"hidden_comments"`
	OpenConversations   int64 `json:"open_conversations"`
	UnreadConversations int64 `json:"unread_conversations"`
}

// Stats counts the main tables
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	st := &Stats{}
	counts := []struct {
		dest  *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&st.Users, &models.User{}, "", nil},
		{&st.BannedUsers, &models.User{}, "is_banned = ?", []interface{}{true}},
		{&st.Stories, &models.Story{}, "", nil},
		{&st.Episodes, &models.Episode{}, "", nil},
		{&st.Articles, &models.Article{}, "", nil},
		{&st.Comments, &models.Comment{}, "is_deleted = ?", []interface{}{false}},
		{&st.HiddenComments, &models.Comment{}, "is_hidden = ? AND is_deleted = ?", []interface{}{true, false}},
		{&st.OpenConversations, &models.ChatConversation{}, "status = ?", []interface{}{models.ConversationOpen}},
		{&st.UnreadConversations, &models.ChatConversation{}, "admin_read_at IS NULL AND last_message_at IS NOT NULL", nil},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("count %T: %w", c.model, err)
		}
	}
	return st, nil
}
