// Package comments implements threaded comments on stories, episodes and articles.
package comments

import (
	"context"
	"errors"
	"fmt"
	"time"

	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/metrics"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/targets"
	"github.com/seiixin/gunwadex/internal/telemetry"
	"github.com/seiixin/gunwadex/internal/util"
	"gorm.io/gorm"
)

const (
	MaxBodyLength = 2000
	EditWindow    = 15 * time.Minute
)

// Service reads and writes comments
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput is a new comment or reply
type CreateInput struct {
	Target   models.TargetRef
	ParentID string
	Body     string
}

func validateBody(body string) (string, error) {
	body, err := util.ValidateLength(body, 1, MaxBodyLength)
	if err != nil {
		return "", apierrors.ValidationError("body", "body "+err.Error())
	}
	return body, nil
}

// Create stores a comment. A reply to a reply is attached to the top-level comment.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (c *models.Comment, err error) {
	ref := in.Target
	ctx, span := telemetry.StartSpan(ctx, "comments.create",
		append(telemetry.TargetAttrs(string(ref.Kind), ref.ID), telemetry.UserAttr(authorID))...)
	defer func() { telemetry.EndSpan(span, err) }()

	if !ref.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownTargetKind, ref.Kind)
	}
	if !models.Commentable.Allows(ref.Kind) {
		return nil, apierrors.ValidationError("target_type", fmt.Sprintf("%s cannot be commented on", ref.Kind))
	}
	body, err := validateBody(in.Body)
	if err != nil {
		return nil, err
	}

	c = &models.Comment{
		AuthorID:   authorID,
		TargetType: ref.Kind,
		TargetID:   ref.ID,
		Body:       body,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := targets.Exists(tx, ref); err != nil {
			return err
		}

		if in.ParentID != "" {
			parent, err := visibleParent(tx, in.ParentID)
			if err != nil {
				return err
			}
			if parent.Target() != ref {
				return apierrors.ValidationError("parent_id", "parent comment belongs to another target")
			}
			if parent.ParentID != nil {
				// the thread root must still be visible too
				if parent, err = visibleParent(tx, *parent.ParentID); err != nil {
					return err
				}
			}
			c.ParentID = &parent.ID
		}

		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		return targets.Adjust(tx, ref, targets.CommentCount, 1)
	})
	if err != nil {
		return nil, err
	}

	metrics.Get().CommentsTotal.WithLabelValues("create").Inc()
	return s.Get(ctx, c.ID)
}

// Get loads one comment with its author
func (s *Service) Get(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).Preload("Author", models.PublicColumns).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.NotFound("comment")
		}
		return nil, err
	}
	return &c, nil
}

// visibleParent loads a reply parent; deleted and hidden comments take no replies
func visibleParent(tx *gorm.DB, id string) (*models.Comment, error) {
	var parent models.Comment
	if err := visible(tx.Model(&models.Comment{})).Where("id = ?", id).Take(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ValidationError("parent_id", "parent comment not found")
		}
		return nil, err
	}
	return &parent, nil
}

func visible(q *gorm.DB) *gorm.DB {
	return q.Where("is_hidden = ? AND is_deleted = ?", false, false)
}

// List returns visible top-level comments on a target, newest first
func (s *Service) List(ctx context.Context, ref models.TargetRef, page util.Page) ([]models.Comment, int64, error) {
	if !ref.Kind.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", models.ErrUnknownTargetKind, ref.Kind)
	}
	if !models.Commentable.Allows(ref.Kind) {
		return nil, 0, apierrors.ValidationError("target_type", fmt.Sprintf("%s has no comments", ref.Kind))
	}

	db := s.db.WithContext(ctx)
	base := visible(db.Model(&models.Comment{})).
		Where("target_type = ? AND target_id = ? AND parent_id IS NULL", ref.Kind, ref.ID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := visible(db.Preload("Author", models.PublicColumns)).
		Where("target_type = ? AND target_id = ? AND parent_id IS NULL", ref.Kind, ref.ID).
		Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}

	if err := s.attachReplyCounts(db, comments); err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (s *Service) attachReplyCounts(db *gorm.DB, comments []models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]string, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}

	var rows []struct {
		ParentID string
		N        int
	}
	err := visible(db.Model(&models.Comment{})).
		Select("parent_id, COUNT(*) AS n").
		Where("parent_id IN ?", ids).
		Group("parent_id").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("count replies: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.ParentID] = r.N
	}
	for i := range comments {
		comments[i].ReplyCount = counts[comments[i].ID]
	}
	return nil
}

// Replies returns visible replies to a comment, oldest first
func (s *Service) Replies(ctx context.Context, parentID string, page util.Page) ([]models.Comment, int64, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.Get(ctx, parentID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := visible(db.Model(&models.Comment{})).Where("parent_id = ?", parentID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var replies []models.Comment
	err := visible(db.Preload("Author", models.PublicColumns)).
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&replies).Error
	return replies, total, err
}

// Update edits the body. Only the author may edit, and only within EditWindow.
func (s *Service) Update(ctx context.Context, userID, commentID, body string) (*models.Comment, error) {
	c, err := s.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, apierrors.Forbidden("you can only edit your own comments")
	}
	if c.IsDeleted {
		return nil, apierrors.NotFound("comment")
	}
	now := s.now()
	if now.Sub(c.CreatedAt) > EditWindow {
		return nil, apierrors.Forbidden("comments can only be edited within 15 minutes")
	}
	if body, err = validateBody(body); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(c).Updates(map[string]interface{}{
		"body":      body,
		"edited_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}

	metrics.Get().CommentsTotal.WithLabelValues("update").Inc()
	return s.Get(ctx, commentID)
}

// Delete soft-deletes a comment. The author or an admin may delete.
func (s *Service) Delete(ctx context.Context, userID string, isAdmin bool, commentID string) error {
	c, err := s.Get(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != userID && !isAdmin {
		return apierrors.Forbidden("you can only delete your own comments")
	}
	return s.SoftDelete(ctx, c)
}

// SoftDelete blanks the comment and decrements the target's comment count.
// Deleting an already deleted comment is a no-op.
func (s *Service) SoftDelete(ctx context.Context, c *models.Comment) error {
	if c.IsDeleted {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ? AND is_deleted = ?", c.ID, false).
			Updates(map[string]interface{}{"body": models.DeletedCommentBody, "is_deleted": true})
		if res.Error != nil {
			return fmt.Errorf("delete comment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return targets.Adjust(tx, c.Target(), targets.CommentCount, -1)
	})
	if err != nil {
		return err
	}
	c.IsDeleted = true
	c.Body = models.DeletedCommentBody
	metrics.Get().CommentsTotal.WithLabelValues("delete").Inc()
	return nil
}

// SetHidden hides or unhides a comment from public listings
func (s *Service) SetHidden(ctx context.Context, commentID string, hidden bool) (*models.Comment, error) {
	c, err := s.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(c).Update("is_hidden", hidden).Error; err != nil {
		return nil, fmt.Errorf("set hidden: %w", err)
	}
	action := "unhide"
	if hidden {
		action = "hide"
	}
	metrics.Get().CommentsTotal.WithLabelValues(action).Inc()
	c.IsHidden = hidden
	return c, nil
}

// Recent returns the newest visible comments across all targets
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := visible(s.db.WithContext(ctx).Preload("Author", models.PublicColumns)).
		Order("created_at DESC").
		Limit(limit).
		Find(&comments).Error
	return comments, err
}
