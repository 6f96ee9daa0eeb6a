package content

import (
	"context"
	"fmt"
	"strings"

	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/search"
	"github.com/seiixin/gunwadex/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CategoryInput creates or updates a category
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateCategory adds a category with a slug derived from its name
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name, err := util.ValidateLength(in.Name, 1, 100)
	if err != nil {
		return nil, apierrors.ValidationError("name", "name "+err.Error())
	}
	cat := &models.Category{Name: name, Description: strings.TrimSpace(in.Description)}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cat.Slug, err = uniqueSlug(tx, &models.Category{}, name, ""); err != nil {
			return err
		}
		return tx.Create(cat).Error
	})
	if err != nil {
		return nil, writeError(err, "category")
	}
	logger.Log.Info("Category created", zap.String("category_id", cat.ID), zap.String("slug", cat.Slug))
	return cat, nil
}

// UpdateCategory renames a category; the slug follows the name
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*models.Category, error) {
	name, err := util.ValidateLength(in.Name, 1, 100)
	if err != nil {
		return nil, apierrors.ValidationError("name", "name "+err.Error())
	}
	var cat models.Category
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cat, "id = ?", id).Error; err != nil {
			return notFound(err, "category")
		}
		if name != cat.Name {
			if cat.Slug, err = uniqueSlug(tx, &models.Category{}, name, cat.ID); err != nil {
				return err
			}
		}
		cat.Name = name
		cat.Description = strings.TrimSpace(in.Description)
		return tx.Save(&cat).Error
	})
	if err != nil {
		return nil, writeError(err, "category")
	}
	return &cat, nil
}

// DeleteCategory removes a category; its stories become uncategorised
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	var storyIDs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		if err := tx.First(&cat, "id = ?", id).Error; err != nil {
			return notFound(err, "category")
		}
		if err := tx.Model(&models.Story{}).Where("category_id = ?", id).Pluck("id", &storyIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Story{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return fmt.Errorf("detach stories: %w", err)
		}
		return tx.Delete(&cat).Error
	})
	if err != nil {
		return err
	}
	for _, sid := range storyIDs {
		s.reindex(ctx, search.KindStory, sid, s.indexer.IndexStory)
	}
	logger.Log.Info("Category deleted", zap.String("category_id", id), zap.Int("stories_detached", len(storyIDs)))
	return nil
}

// StoryInput creates or updates a story. A nil CategoryID on update leaves
// the category unchanged; a pointer to "" clears it.
type StoryInput struct {
	Title      string  `json:"title"`
	Synopsis   string  `json:"synopsis"`
	CoverURL   string  `json:"cover_url"`
	CategoryID *string `json:"category_id"`
	Status     string  `json:"status"`
}

func (s *Service) applyStory(tx *gorm.DB, story *models.Story, in StoryInput) error {
	title, err := validateTitle(in.Title)
	if err != nil {
		return err
	}
	synopsis, err := util.ValidateLength(in.Synopsis, 0, 5000)
	if err != nil {
		return apierrors.ValidationError("synopsis", "synopsis "+err.Error())
	}
	status, ok := models.ParsePublishStatus(in.Status)
	if !ok {
		return apierrors.ValidationError("status", "status must be draft or published")
	}
	if in.CategoryID != nil {
		if *in.CategoryID == "" {
			story.CategoryID = nil
		} else {
			var n int64
			if err := tx.Model(&models.Category{}).Where("id = ?", *in.CategoryID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apierrors.ValidationError("category_id", "category does not exist")
			}
			id := *in.CategoryID
			story.CategoryID = &id
		}
	}

	if title != story.Title || story.Slug == "" {
		if story.Slug, err = uniqueSlug(tx, &models.Story{}, title, story.ID); err != nil {
			return err
		}
	}
	story.Title = title
	story.Synopsis = synopsis
	story.CoverURL = strings.TrimSpace(in.CoverURL)
	story.Status = status
	if status == models.StatusPublished && story.PublishedAt == nil {
		now := s.now()
		story.PublishedAt = &now
	}
	return nil
}

// CreateStory adds a story owned by authorID
func (s *Service) CreateStory(ctx context.Context, authorID string, in StoryInput) (*models.Story, error) {
	story := &models.Story{AuthorID: authorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyStory(tx, story, in); err != nil {
			return err
		}
		return tx.Create(story).Error
	})
	if err != nil {
		return nil, writeError(err, "story")
	}
	s.reindex(ctx, search.KindStory, story.ID, s.indexer.IndexStory)
	logger.Log.Info("Story created", logger.WithTarget(string(models.TargetStory), story.ID), zap.String("slug", story.Slug))
	return s.adminStory(ctx, story.ID)
}

// UpdateStory replaces a story's editable fields
func (s *Service) UpdateStory(ctx context.Context, id string, in StoryInput) (*models.Story, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		if err := tx.First(&story, "id = ?", id).Error; err != nil {
			return notFound(err, "story")
		}
		if err := s.applyStory(tx, &story, in); err != nil {
			return err
		}
		return tx.Select("title", "slug", "synopsis", "cover_url", "category_id", "status", "published_at").
			Updates(&story).Error
	})
	if err != nil {
		return nil, writeError(err, "story")
	}
	s.reindex(ctx, search.KindStory, id, s.indexer.IndexStory)
	return s.adminStory(ctx, id)
}

// DeleteStory soft-deletes a story and its episodes
func (s *Service) DeleteStory(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		if err := tx.First(&story, "id = ?", id).Error; err != nil {
			return notFound(err, "story")
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.Episode{}).Error; err != nil {
			return fmt.Errorf("delete episodes: %w", err)
		}
		return tx.Delete(&story).Error
	})
	if err != nil {
		return err
	}
	s.unindex(ctx, search.KindStory, id)
	logger.Log.Info("Story deleted", logger.WithTarget(string(models.TargetStory), id))
	return nil
}

func (s *Service) adminStory(ctx context.Context, id string) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).
		Preload("Author", models.PublicColumns).
		Preload("Category").
		Preload("Episodes", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&story, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "story")
	}
	return &story, nil
}

// AssetInput is one page of an episode
type AssetInput struct {
	URL    string           `json:"url"`
	Kind   models.AssetKind `json:"kind"`
	Width  int              `json:"width"`
	Height int              `json:"height"`
}

// EpisodeInput creates or updates an episode. A nil Assets on update keeps
// the current pages; a non-nil slice replaces them in order.
type EpisodeInput struct {
	Number int           `json:"number"`
	Title  string        `json:"title"`
	Notes  string        `json:"notes"`
	Status string        `json:"status"`
	Assets *[]AssetInput `json:"assets"`
}

const maxEpisodeAssets = 500

func (s *Service) applyEpisode(ep *models.Episode, in EpisodeInput) error {
	if in.Number < 1 {
		return apierrors.ValidationError("number", "number must be at least 1")
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return err
	}
	status, ok := models.ParsePublishStatus(in.Status)
	if !ok {
		return apierrors.ValidationError("status", "status must be draft or published")
	}
	ep.Number = in.Number
	ep.Title = title
	ep.Notes = strings.TrimSpace(in.Notes)
	ep.Status = status
	if status == models.StatusPublished && ep.PublishedAt == nil {
		now := s.now()
		ep.PublishedAt = &now
	}
	return nil
}

func buildAssets(episodeID string, in []AssetInput) ([]models.EpisodeAsset, error) {
	if len(in) > maxEpisodeAssets {
		return nil, apierrors.ValidationError("assets", fmt.Sprintf("at most %d assets per episode", maxEpisodeAssets))
	}
	assets := make([]models.EpisodeAsset, 0, len(in))
	for i, a := range in {
		url := strings.TrimSpace(a.URL)
		if url == "" {
			return nil, apierrors.ValidationError("assets", fmt.Sprintf("asset %d has no url", i+1))
		}
		kind := a.Kind
		switch kind {
		case "":
			kind = models.AssetImage
		case models.AssetImage, models.AssetAudio, models.AssetFile:
		default:
			return nil, apierrors.ValidationError("assets", fmt.Sprintf("asset %d has unknown kind %q", i+1, a.Kind))
		}
		assets = append(assets, models.EpisodeAsset{
			EpisodeID: episodeID,
			Position:  i + 1,
			URL:       url,
			Kind:      kind,
			Width:     a.Width,
			Height:    a.Height,
		})
	}
	return assets, nil
}

func replaceAssets(tx *gorm.DB, episodeID string, in []AssetInput) error {
	assets, err := buildAssets(episodeID, in)
	if err != nil {
		return err
	}
	if err := tx.Where("episode_id = ?", episodeID).Delete(&models.EpisodeAsset{}).Error; err != nil {
		return fmt.Errorf("clear assets: %w", err)
	}
	if len(assets) == 0 {
		return nil
	}
	return tx.Create(&assets).Error
}

// CreateEpisode adds an episode to a story. Episode numbers are unique per
// story (409 on a duplicate).
func (s *Service) CreateEpisode(ctx context.Context, storyID string, in EpisodeInput) (*models.Episode, error) {
	ep := &models.Episode{StoryID: storyID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Story{}).Where("id = ?", storyID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apierrors.NotFound("story")
		}
		if err := s.applyEpisode(ep, in); err != nil {
			return err
		}
		if err := tx.Create(ep).Error; err != nil {
			return err
		}
		if in.Assets != nil {
			return replaceAssets(tx, ep.ID, *in.Assets)
		}
		return nil
	})
	if err != nil {
		return nil, writeError(err, "episode")
	}
	logger.Log.Info("Episode created", logger.WithTarget(string(models.TargetEpisode), ep.ID), zap.Int("number", ep.Number))
	return s.adminEpisode(ctx, ep.ID)
}

// UpdateEpisode replaces an episode's fields and optionally its assets
func (s *Service) UpdateEpisode(ctx context.Context, id string, in EpisodeInput) (*models.Episode, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ep models.Episode
		if err := tx.First(&ep, "id = ?", id).Error; err != nil {
			return notFound(err, "episode")
		}
		if err := s.applyEpisode(&ep, in); err != nil {
			return err
		}
		if err := tx.Select("number", "title", "notes", "status", "published_at").Updates(&ep).Error; err != nil {
			return err
		}
		if in.Assets != nil {
			return replaceAssets(tx, id, *in.Assets)
		}
		return nil
	})
	if err != nil {
		return nil, writeError(err, "episode")
	}
	return s.adminEpisode(ctx, id)
}

// DeleteEpisode soft-deletes an episode and drops its assets
func (s *Service) DeleteEpisode(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ep models.Episode
		if err := tx.First(&ep, "id = ?", id).Error; err != nil {
			return notFound(err, "episode")
		}
		if err := tx.Where("episode_id = ?", id).Delete(&models.EpisodeAsset{}).Error; err != nil {
			return fmt.Errorf("delete assets: %w", err)
		}
		return tx.Delete(&ep).Error
	})
}

func (s *Service) adminEpisode(ctx context.Context, id string) (*models.Episode, error) {
	var ep models.Episode
	err := s.db.WithContext(ctx).
		Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&ep, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "episode")
	}
	return &ep, nil
}

// ArticleInput creates or updates an article
type ArticleInput struct {
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Body     string `json:"body"`
	CoverURL string `json:"cover_url"`
	Status   string `json:"status"`
}

func (s *Service) applyArticle(tx *gorm.DB, a *models.Article, in ArticleInput) error {
	title, err := validateTitle(in.Title)
	if err != nil {
		return err
	}
	excerpt, err := util.ValidateLength(in.Excerpt, 0, 1000)
	if err != nil {
		return apierrors.ValidationError("excerpt", "excerpt "+err.Error())
	}
	status, ok := models.ParsePublishStatus(in.Status)
	if !ok {
		return apierrors.ValidationError("status", "status must be draft or published")
	}
	if title != a.Title || a.Slug == "" {
		if a.Slug, err = uniqueSlug(tx, &models.Article{}, title, a.ID); err != nil {
			return err
		}
	}
	a.Title = title
	a.Excerpt = excerpt
	a.Body = in.Body
	a.CoverURL = strings.TrimSpace(in.CoverURL)
	a.Status = status
	if status == models.StatusPublished && a.PublishedAt == nil {
		now := s.now()
		a.PublishedAt = &now
	}
	return nil
}

// CreateArticle adds an article owned by authorID
func (s *Service) CreateArticle(ctx context.Context, authorID string, in ArticleInput) (*models.Article, error) {
	a := &models.Article{AuthorID: authorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyArticle(tx, a, in); err != nil {
			return err
		}
		return tx.Create(a).Error
	})
	if err != nil {
		return nil, writeError(err, "article")
	}
	s.reindex(ctx, search.KindArticle, a.ID, s.indexer.IndexArticle)
	logger.Log.Info("Article created", logger.WithTarget(string(models.TargetArticle), a.ID), zap.String("slug", a.Slug))
	return a, nil
}

// UpdateArticle replaces an article's editable fields
func (s *Service) UpdateArticle(ctx context.Context, id string, in ArticleInput) (*models.Article, error) {
	var a models.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, "id = ?", id).Error; err != nil {
			return notFound(err, "article")
		}
		if err := s.applyArticle(tx, &a, in); err != nil {
			return err
		}
		return tx.Select("title", "slug", "excerpt", "body", "cover_url", "status", "published_at").Updates(&a).Error
	})
	if err != nil {
		return nil, writeError(err, "article")
	}
	s.reindex(ctx, search.KindArticle, id, s.indexer.IndexArticle)
	return &a, nil
}

// DeleteArticle soft-deletes an article
func (s *Service) DeleteArticle(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Article{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierrors.NotFound("article")
	}
	s.unindex(ctx, search.KindArticle, id)
	logger.Log.Info("Article deleted", logger.WithTarget(string(models.TargetArticle), id))
	return nil
}

// writeError turns a unique-index violation into a 409
func writeError(err error, resource string) error {
	if util.IsDuplicateKey(err) {
		return apierrors.Conflict(resource + " already exists")
	}
	return err
}
