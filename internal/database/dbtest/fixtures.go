package dbtest

import (
	"testing"
	"time"

	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/util"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// CreateUser inserts a user with the given username and role
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: username,
		Role:        role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateStory inserts a published story owned by author
func CreateStory(t testing.TB, db *gorm.DB, author *models.User, title string) *models.Story {
	t.Helper()
	now := time.Now().UTC()
	s := &models.Story{
		AuthorID:    author.ID,
		Title:       title,
		Slug:        util.Slugify(title),
		Status:      models.StatusPublished,
		PublishedAt: &now,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// CreateEpisode inserts a published episode
func CreateEpisode(t testing.TB, db *gorm.DB, story *models.Story, number int) *models.Episode {
	t.Helper()
	now := time.Now().UTC()
	e := &models.Episode{
		StoryID:     story.ID,
		Number:      number,
		Title:       story.Title,
		Status:      models.StatusPublished,
		PublishedAt: &now,
	}
	require.NoError(t, db.Create(e).Error)
	return e
}

// CreateArticle inserts a published article owned by author
func CreateArticle(t testing.TB, db *gorm.DB, author *models.User, title string) *models.Article {
	t.Helper()
	now := time.Now().UTC()
	a := &models.Article{
		AuthorID:    author.ID,
		Title:       title,
		Slug:        util.Slugify(title),
		Body:        "body of " + title,
		Status:      models.StatusPublished,
		PublishedAt: &now,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}
