// Package content serves published stories, episodes, articles and
// categories, and implements the admin CRUD behind them.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seiixin/gunwadex/internal/comments"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Indexer keeps a search index in step with content writes
type Indexer interface {
	IndexStory(ctx context.Context, storyID string) error
	IndexArticle(ctx context.Context, articleID string) error
	Remove(ctx context.Context, kind, id string) error
}

type noopIndexer struct{}

func (noopIndexer) IndexStory(context.Context, string) error     { return nil }
func (noopIndexer) IndexArticle(context.Context, string) error   { return nil }
func (noopIndexer) Remove(context.Context, string, string) error { return nil }

// Service reads and writes content
type Service struct {
	db       *gorm.DB
	comments *comments.Service
	indexer  Indexer
	now      func() time.Time
}

// NewService creates the content service. indexer may be nil.
func NewService(db *gorm.DB, comments *comments.Service, indexer Indexer) *Service {
	if indexer == nil {
		indexer = noopIndexer{}
	}
	return &Service{
		db:       db,
		comments: comments,
		indexer:  indexer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// reindex runs after commit; the database stays authoritative so a search
// failure is only logged
func (s *Service) reindex(ctx context.Context, kind, id string, fn func(context.Context, string) error) {
	if err := fn(ctx, id); err != nil {
		logger.Log.Warn("Failed to update search index", logger.WithTarget(kind, id), zap.Error(err))
	}
}

func (s *Service) unindex(ctx context.Context, kind, id string) {
	if err := s.indexer.Remove(ctx, kind, id); err != nil {
		logger.Log.Warn("Failed to remove from search index", logger.WithTarget(kind, id), zap.Error(err))
	}
}

const maxSlugAttempts = 1000

// uniqueSlug derives a slug from title and appends -2, -3, ... until no
// row of model (soft-deleted rows included) other than excludeID uses it
func uniqueSlug(tx *gorm.DB, model interface{}, title, excludeID string) (string, error) {
	base := util.Slugify(title)
	if base == "" {
		base = "untitled"
	}
	base = strings.Trim(util.Truncate(base, 180), "-")

	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		q := tx.Unscoped().Model(model).Where("slug = ?", candidate)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if n == 0 {
			return candidate, nil
		}
	}
	return "", apierrors.Conflict("could not derive a unique slug")
}

func validateTitle(title string) (string, error) {
	title, err := util.ValidateLength(title, 1, 200)
	if err != nil {
		return "", apierrors.ValidationError("title", "title "+err.Error())
	}
	return title, nil
}

func notFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierrors.NotFound(resource)
	}
	return err
}
