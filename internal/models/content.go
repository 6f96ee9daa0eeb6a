package models

import (
	"time"

	"gorm.io/gorm"
)

// PublishStatus controls public visibility of stories, episodes and articles
type PublishStatus string

const (
	StatusDraft     PublishStatus = "draft"
	StatusPublished PublishStatus = "published"
)

func ParsePublishStatus(s string) (PublishStatus, bool) {
	switch st := PublishStatus(s); st {
	case StatusDraft, StatusPublished:
		return st, true
	case "":
		return StatusDraft, true
	}
	return "", false
}

// Category groups stories
type Category struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Story is a serialized work made of episodes
type Story struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID   string    `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CategoryID *string   `gorm:"type:varchar(36);index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	Title    string        `gorm:"not null" json:"title"`
	Slug     string        `gorm:"uniqueIndex;not null" json:"slug"`
	Synopsis string        `gorm:"type:text" json:"synopsis"`
	CoverURL string        `json:"cover_url"`
	Status   PublishStatus `gorm:"type:varchar(16);not null;default:draft" json:"status"`

	// Cached engagement counters, maintained alongside the row changes
	ViewCount     int     `gorm:"default:0" json:"view_count"`
	LikeCount     int     `gorm:"default:0" json:"like_count"`
	FavoriteCount int     `gorm:"default:0" json:"favorite_count"`
	CommentCount  int     `gorm:"default:0" json:"comment_count"`
	RatingAvg     float64 `gorm:"default:0" json:"rating_avg"`
	RatingCount   int     `gorm:"default:0" json:"rating_count"`

	Episodes []Episode `gorm:"foreignKey:StoryID" json:"episodes,omitempty"`

	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Episode is one numbered chapter of a story
type Episode struct {
	ID      string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StoryID string        `gorm:"type:varchar(36);not null;uniqueIndex:idx_episodes_story_number" json:"story_id"`
	Number  int           `gorm:"not null;uniqueIndex:idx_episodes_story_number" json:"number"`
	Title   string        `gorm:"not null" json:"title"`
	Notes   string        `gorm:"type:text" json:"notes"`
	Status  PublishStatus `gorm:"type:varchar(16);not null;default:draft" json:"status"`

	ViewCount    int `gorm:"default:0" json:"view_count"`
	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`

	Assets []EpisodeAsset `gorm:"foreignKey:EpisodeID" json:"assets,omitempty"`

	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// AssetKind is the media type of an episode page
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetAudio AssetKind = "audio"
	AssetFile  AssetKind = "file"
)

// EpisodeAsset is a page (image, audio or file) of an episode, ordered by Position
type EpisodeAsset struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EpisodeID string    `gorm:"type:varchar(36);not null;index:idx_episode_assets_position" json:"episode_id"`
	Position  int       `gorm:"not null;index:idx_episode_assets_position" json:"position"`
	URL       string    `gorm:"not null" json:"url"`
	Kind      AssetKind `gorm:"type:varchar(16);not null;default:image" json:"kind"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Article is a standalone blog-style post
type Article struct {
	ID       string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID string        `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Author   *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title    string        `gorm:"not null" json:"title"`
	Slug     string        `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt  string        `gorm:"type:text" json:"excerpt"`
	Body     string        `gorm:"type:text" json:"body,omitempty"`
	CoverURL string        `json:"cover_url"`
	Status   PublishStatus `gorm:"type:varchar(16);not null;default:draft" json:"status"`

	ViewCount     int `gorm:"default:0" json:"view_count"`
	LikeCount     int `gorm:"default:0" json:"like_count"`
	FavoriteCount int `gorm:"default:0" json:"favorite_count"`
	CommentCount  int `gorm:"default:0" json:"comment_count"`

	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (s *Story) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	return nil
}

func (e *Episode) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = generateUUID()
	}
	return nil
}

func (a *EpisodeAsset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	return nil
}

func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	return nil
}
