package content

import (
	"context"
	"strings"

	apierrors "github.com/seiixin/gunwadex/internal/errors"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
	"gorm.io/gorm"
)

// Story list orderings
const (
	SortLatest   = "latest"
	SortPopular  = "popular"
	SortTopRated = "top_rated"
)

var storyOrders = map[string]string{
	SortLatest:   "published_at DESC, id",
	SortPopular:  "view_count DESC, like_count DESC, id",
	SortTopRated: "rating_avg DESC, rating_count DESC, id",
}

// StoryFilter narrows ListStories
type StoryFilter struct {
	Category string // category slug
	Author   string // username
	Sort     string
}

func published(q *gorm.DB) *gorm.DB {
	return q.Where("status = ?", models.StatusPublished)
}

// ListStories returns published stories
func (s *Service) ListStories(ctx context.Context, filter StoryFilter, page util.Page) ([]models.Story, int64, error) {
	sortKey := filter.Sort
	if sortKey == "" {
		sortKey = SortLatest
	}
	order, ok := storyOrders[sortKey]
	if !ok {
		return nil, 0, apierrors.ValidationError("sort", "sort must be one of latest, popular, top_rated")
	}

	db := s.db.WithContext(ctx)
	q := published(db.Model(&models.Story{}))
	if filter.Category != "" {
		var cat models.Category
		if err := db.Select("id").Where("slug = ?", filter.Category).Take(&cat).Error; err != nil {
			return nil, 0, notFound(err, "category")
		}
		q = q.Where("category_id = ?", cat.ID)
	}
	if filter.Author != "" {
		var author models.User
		if err := db.Select("id").Where("username = ?", filter.Author).Take(&author).Error; err != nil {
			return nil, 0, notFound(err, "author")
		}
		q = q.Where("author_id = ?", author.ID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var stories []models.Story
	err := q.Preload("Author", models.PublicColumns).Preload("Category").
		Order(order).Limit(page.Limit).Offset(page.Offset).
		Find(&stories).Error
	return stories, total, err
}

// StoryBySlug returns a published story with its published episodes
func (s *Service) StoryBySlug(ctx context.Context, slug string) (*models.Story, error) {
	var story models.Story
	err := published(s.db.WithContext(ctx)).
		Preload("Author", models.PublicColumns).
		Preload("Category").
		Preload("Episodes", func(db *gorm.DB) *gorm.DB {
			return published(db).Order("number ASC")
		}).
		Where("slug = ?", slug).
		First(&story).Error
	if err != nil {
		return nil, notFound(err, "story")
	}
	return &story, nil
}

// EpisodeDetail is an episode with its story and neighbouring episode numbers
type EpisodeDetail struct {
	Story   *models.Story   `json:"story"`
	Episode *models.Episode `json:"episode"`
	Prev    *int            `json:"prev"`
	Next    *int            `json:"next"`
}

// Episode returns a published episode of a published story with its assets
// in position order
func (s *Service) Episode(ctx context.Context, storySlug string, number int) (*EpisodeDetail, error) {
	db := s.db.WithContext(ctx)
	var story models.Story
	if err := published(db).Preload("Author", models.PublicColumns).Where("slug = ?", storySlug).First(&story).Error; err != nil {
		return nil, notFound(err, "story")
	}

	var ep models.Episode
	err := published(db).
		Preload("Assets", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("story_id = ? AND number = ?", story.ID, number).
		First(&ep).Error
	if err != nil {
		return nil, notFound(err, "episode")
	}

	detail := &EpisodeDetail{Story: &story, Episode: &ep}
	var prev, next []int
	if err := published(db.Model(&models.Episode{})).
		Where("story_id = ? AND number < ?", story.ID, number).
		Order("number DESC").Limit(1).Pluck("number", &prev).Error; err != nil {
		return nil, err
	}
	if err := published(db.Model(&models.Episode{})).
		Where("story_id = ? AND number > ?", story.ID, number).
		Order("number ASC").Limit(1).Pluck("number", &next).Error; err != nil {
		return nil, err
	}
	if len(prev) > 0 {
		detail.Prev = &prev[0]
	}
	if len(next) > 0 {
		detail.Next = &next[0]
	}
	return detail, nil
}

// ListArticles returns published articles, newest first, without bodies
func (s *Service) ListArticles(ctx context.Context, page util.Page) ([]models.Article, int64, error) {
	q := published(s.db.WithContext(ctx).Model(&models.Article{}))
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var articles []models.Article
	err := q.Omit("body").Preload("Author", models.PublicColumns).
		Order("published_at DESC, id").
		Limit(page.Limit).Offset(page.Offset).
		Find(&articles).Error
	return articles, total, err
}

// ArticleBySlug returns a published article
func (s *Service) ArticleBySlug(ctx context.Context, slug string) (*models.Article, error) {
	var a models.Article
	if err := published(s.db.WithContext(ctx)).Preload("Author", models.PublicColumns).Where("slug = ?", slug).First(&a).Error; err != nil {
		return nil, notFound(err, "article")
	}
	return &a, nil
}

// CategorySummary is a category with the number of its published stories
type CategorySummary struct {
	models.Category
	StoryCount int64 `json:"story_count"`
}

// Categories lists every category by name
func (s *Service) Categories(ctx context.Context) ([]CategorySummary, error) {
	db := s.db.WithContext(ctx)
	var cats []models.Category
	if err := db.Order("name ASC").Find(&cats).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		CategoryID string
		N          int64
	}
	if err := published(db.Model(&models.Story{})).
		Select("category_id, COUNT(*) AS n").
		Where("category_id IS NOT NULL").
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.N
	}

	out := make([]CategorySummary, len(cats))
	for i, c := range cats {
		out[i] = CategorySummary{Category: c, StoryCount: counts[c.ID]}
	}
	return out, nil
}

// CategoryPage is a category with a page of its published stories
type CategoryPage struct {
	Category models.Category `json:"category"`
	Stories  []models.Story  `json:"stories"`
	Total    int64           `json:"total"`
}

// CategoryBySlug returns a category and its published stories
func (s *Service) CategoryBySlug(ctx context.Context, slug, sort string, page util.Page) (*CategoryPage, error) {
	var cat models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&cat).Error; err != nil {
		return nil, notFound(err, "category")
	}
	stories, total, err := s.ListStories(ctx, StoryFilter{Category: slug, Sort: sort}, page)
	if err != nil {
		return nil, err
	}
	return &CategoryPage{Category: cat, Stories: stories, Total: total}, nil
}

// AuthorPage is a public profile with the author's published work
type AuthorPage struct {
	Author   models.PublicUser `json:"author"`
	Stories  []models.Story    `json:"stories"`
	Articles []models.Article  `json:"articles"`
}

// Author returns the public page of username
func (s *Service) Author(ctx context.Context, username string) (*AuthorPage, error) {
	db := s.db.WithContext(ctx)
	var u models.User
	if err := db.Where("LOWER(username) = ?", strings.ToLower(username)).First(&u).Error; err != nil {
		return nil, notFound(err, "author")
	}

	page := &AuthorPage{Author: u.Public(), Stories: []models.Story{}, Articles: []models.Article{}}
	if err := published(db).Preload("Category").
		Where("author_id = ?", u.ID).
		Order("published_at DESC, id").
		Find(&page.Stories).Error; err != nil {
		return nil, err
	}
	if err := published(db).Omit("body").
		Where("author_id = ?", u.ID).
		Order("published_at DESC, id").
		Find(&page.Articles).Error; err != nil {
		return nil, err
	}
	return page, nil
}

// CommunityPage shows recent discussion and the most liked stories
type CommunityPage struct {
	RecentComments []models.Comment `json:"recent_comments"`
	TopStories     []models.Story   `json:"top_stories"`
}

const communityListSize = 10

// Community returns the community page
func (s *Service) Community(ctx context.Context) (*CommunityPage, error) {
	recent, err := s.comments.Recent(ctx, communityListSize)
	if err != nil {
		return nil, err
	}
	var top []models.Story
	if err := published(s.db.WithContext(ctx)).Preload("Author", models.PublicColumns).
		Order("like_count DESC, view_count DESC, id").
		Limit(communityListSize).
		Find(&top).Error; err != nil {
		return nil, err
	}
	return &CommunityPage{RecentComments: recent, TopStories: top}, nil
}
