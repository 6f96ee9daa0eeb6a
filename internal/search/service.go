// Package search indexes published stories and articles and answers the
// site search box, using Elasticsearch when configured and the database
// otherwise.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/seiixin/gunwadex/internal/cache"
	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/metrics"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/telemetry"
	"github.com/seiixin/gunwadex/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Backend labels for results and metrics
const (
	BackendElasticsearch = "elasticsearch"
	BackendDatabase      = "database"
)

const maxQueryLength = 200

// Service answers searches and keeps the index in step with content writes
type Service struct {
	db     *gorm.DB
	client *Client
	cache  *resultCache
}

// NewService creates the search service. client and redis may be nil.
func NewService(db *gorm.DB, client *Client, redis *cache.RedisClient) *Service {
	return &Service{
		db:     db,
		client: client,
		cache:  &resultCache{redis: redis, ttl: resultTTL},
	}
}

// Enabled reports whether an Elasticsearch index backs the service
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Search returns published stories and articles matching q.
// An Elasticsearch failure falls back to the database.
func (s *Service) Search(ctx context.Context, q string, page util.Page) (result *Result, err error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apierrors.ValidationError("q", "search query is required")
	}
	if len([]rune(q)) > maxQueryLength {
		return nil, apierrors.ValidationError("q", "search query is too long")
	}

	ctx, span := telemetry.StartSpan(ctx, "search.query", attribute.String("search.query", q))
	defer func() { telemetry.EndSpan(span, err) }()

	cached, cacheKey := s.cache.get(ctx, q, page.Limit, page.Offset)
	if cached != nil {
		span.SetAttributes(attribute.Bool("search.cache_hit", true))
		return cached, nil
	}

	if s.client != nil {
		result, err = s.timed(BackendElasticsearch, func() (*Result, error) {
			return s.client.Search(ctx, q, page.Limit, page.Offset)
		})
		if err == nil {
			s.cache.put(ctx, cacheKey, result)
			return result, nil
		}
		logger.Log.Warn("Elasticsearch search failed, falling back to database", zap.String("query", q), zap.Error(err))
	}

	result, err = s.timed(BackendDatabase, func() (*Result, error) {
		return s.searchDatabase(ctx, q, page)
	})
	if err != nil {
		return nil, err
	}
	s.cache.put(ctx, cacheKey, result)
	return result, nil
}

func (s *Service) timed(backend string, fn func() (*Result, error)) (*Result, error) {
	start := time.Now()
	result, err := fn()
	metrics.Get().SearchDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.Get().SearchRequestsTotal.WithLabelValues(backend, status).Inc()
	return result, err
}

// searchDatabase matches title and synopsis/excerpt case-insensitively and
// merges both kinds newest first
func (s *Service) searchDatabase(ctx context.Context, q string, page util.Page) (*Result, error) {
	like := "%" + strings.ToLower(q) + "%"
	window := page.Offset + page.Limit
	db := s.db.WithContext(ctx)

	storyQuery := func() *gorm.DB {
		return db.Model(&models.Story{}).
			Where("status = ?", models.StatusPublished).
			Where("LOWER(title) LIKE ? OR LOWER(synopsis) LIKE ?", like, like)
	}
	articleQuery := func() *gorm.DB {
		return db.Model(&models.Article{}).
			Where("status = ?", models.StatusPublished).
			Where("LOWER(title) LIKE ? OR LOWER(excerpt) LIKE ?", like, like)
	}

	var storyTotal, articleTotal int64
	if err := storyQuery().Count(&storyTotal).Error; err != nil {
		return nil, err
	}
	if err := articleQuery().Count(&articleTotal).Error; err != nil {
		return nil, err
	}

	var stories []models.Story
	if err := storyQuery().Preload("Author", models.PublicColumns).Preload("Category").
		Order("published_at DESC").Limit(window).Find(&stories).Error; err != nil {
		return nil, err
	}
	var articles []models.Article
	if err := articleQuery().Preload("Author", models.PublicColumns).
		Order("published_at DESC").Limit(window).Find(&articles).Error; err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(stories)+len(articles))
	for i := range stories {
		hits = append(hits, Hit{Document: StoryDocument(&stories[i])})
	}
	for i := range articles {
		hits = append(hits, Hit{Document: ArticleDocument(&articles[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return newer(hits[i].PublishedAt, hits[j].PublishedAt)
	})

	if page.Offset >= len(hits) {
		hits = hits[:0]
	} else {
		hits = hits[page.Offset:min(len(hits), window)]
	}
	return &Result{Query: q, Hits: hits, Total: storyTotal + articleTotal, Backend: BackendDatabase}, nil
}

func newer(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return a.After(*b)
}

// IndexStory puts a published story into the index, or removes it when it
// is not published
func (s *Service) IndexStory(ctx context.Context, storyID string) error {
	defer s.cache.invalidate(ctx)
	if s.client == nil {
		return nil
	}
	var story models.Story
	err := s.db.WithContext(ctx).Preload("Author", models.PublicColumns).Preload("Category").First(&story, "id = ?", storyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.client.Delete(ctx, KindStory, storyID)
	}
	if err != nil {
		return err
	}
	if story.Status != models.StatusPublished {
		return s.client.Delete(ctx, KindStory, storyID)
	}
	return s.client.Put(ctx, StoryDocument(&story))
}

// IndexArticle puts a published article into the index, or removes it when
// it is not published
func (s *Service) IndexArticle(ctx context.Context, articleID string) error {
	defer s.cache.invalidate(ctx)
	if s.client == nil {
		return nil
	}
	var article models.Article
	err := s.db.WithContext(ctx).Preload("Author", models.PublicColumns).First(&article, "id = ?", articleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.client.Delete(ctx, KindArticle, articleID)
	}
	if err != nil {
		return err
	}
	if article.Status != models.StatusPublished {
		return s.client.Delete(ctx, KindArticle, articleID)
	}
	return s.client.Put(ctx, ArticleDocument(&article))
}

// Remove deletes a story or article from the index
func (s *Service) Remove(ctx context.Context, kind, id string) error {
	defer s.cache.invalidate(ctx)
	if s.client == nil {
		return nil
	}
	return s.client.Delete(ctx, kind, id)
}
