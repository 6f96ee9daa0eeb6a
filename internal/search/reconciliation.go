package search

import (
	"context"
	"fmt"
	"time"

	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reindexBatchSize = 100

// ReindexStats summarises a full rebuild
type ReindexStats struct {
	Stories  int           `json:"stories"`
	Articles int           `json:"articles"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Reindex rebuilds the content index from the database. When the mapping
// version is outdated the index is dropped and recreated first.
func (s *Service) Reindex(ctx context.Context) (*ReindexStats, error) {
	if s.client == nil {
		return nil, fmt.Errorf("search index is not configured")
	}
	start := time.Now()
	defer s.cache.invalidate(ctx)

	outdated, err := s.client.CheckIndexVersion(ctx)
	if err != nil {
		return nil, err
	}
	if outdated {
		if err := s.client.DeleteIndex(ctx); err != nil {
			return nil, err
		}
	}
	if _, err := s.client.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	stats := &ReindexStats{}
	put := func(doc Document) {
		if err := s.client.Put(ctx, doc); err != nil {
			stats.Failed++
			logger.Log.Warn("Failed to reindex document",
				logger.WithTarget(doc.Kind, doc.ID),
				zap.Error(err),
			)
			return
		}
		if doc.Kind == KindStory {
			stats.Stories++
		} else {
			stats.Articles++
		}
	}

	var stories []models.Story
	err = s.db.WithContext(ctx).Preload("Author", models.PublicColumns).Preload("Category").
		Where("status = ?", models.StatusPublished).
		FindInBatches(&stories, reindexBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range stories {
				put(StoryDocument(&stories[i]))
			}
			return ctx.Err()
		}).Error
	if err != nil {
		return nil, fmt.Errorf("reindex stories: %w", err)
	}

	var articles []models.Article
	err = s.db.WithContext(ctx).Preload("Author", models.PublicColumns).
		Where("status = ?", models.StatusPublished).
		FindInBatches(&articles, reindexBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range articles {
				put(ArticleDocument(&articles[i]))
			}
			return ctx.Err()
		}).Error
	if err != nil {
		return nil, fmt.Errorf("reindex articles: %w", err)
	}

	stats.Duration = time.Since(start)
	logger.Log.Info("Search index rebuilt",
		zap.Int("stories", stats.Stories),
		zap.Int("articles", stats.Articles),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}
