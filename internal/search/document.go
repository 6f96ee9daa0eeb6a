package search

import (
	"time"

	"github.com/seiixin/gunwadex/internal/models"
)

// Document kinds stored in the content index
const (
	KindStory   = "story"
	KindArticle = "article"
)

// Document is one story or article in the content index
type Document struct {
	Kind        string     `json:"kind"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Summary     string     `json:"summary"`
	Author      string     `json:"author"`
	Category    string     `json:"category,omitempty"`
	CoverURL    string     `json:"cover_url,omitempty"`
	LikeCount   int        `json:"like_count"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// DocID is the index document id; stories and articles share one index
func (d Document) DocID() string {
	return docID(d.Kind, d.ID)
}

func docID(kind, id string) string {
	return kind + ":" + id
}

func authorName(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// StoryDocument expects Author and Category to be preloaded
func StoryDocument(s *models.Story) Document {
	d := Document{
		Kind:        KindStory,
		ID:          s.ID,
		Title:       s.Title,
		Slug:        s.Slug,
		Summary:     s.Synopsis,
		Author:      authorName(s.Author),
		CoverURL:    s.CoverURL,
		LikeCount:   s.LikeCount,
		PublishedAt: s.PublishedAt,
	}
	if s.Category != nil {
		d.Category = s.Category.Slug
	}
	return d
}

// ArticleDocument expects Author to be preloaded
func ArticleDocument(a *models.Article) Document {
	return Document{
		Kind:        KindArticle,
		ID:          a.ID,
		Title:       a.Title,
		Slug:        a.Slug,
		Summary:     a.Excerpt,
		Author:      authorName(a.Author),
		CoverURL:    a.CoverURL,
		LikeCount:   a.LikeCount,
		PublishedAt: a.PublishedAt,
	}
}

// Hit is one search result
type Hit struct {
	Document
	Score float64 `json:"score,omitempty"`
}

// Result is a page of mixed story and article hits
type Result struct {
	Query   string `json:"query"`
	Hits    []Hit  `json:"hits"`
	Total   int64  `json:"total"`
	Backend string `json:"backend"`
}
