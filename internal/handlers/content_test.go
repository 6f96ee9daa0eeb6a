package handlers

import (
	"fmt"
	"net/http"

	"github.com/seiixin/gunwadex/internal/content"
	"github.com/seiixin/gunwadex/internal/database/dbtest"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *HandlersTestSuite) TestPublicStoryPages() {
	t := suite.T()
	story := suite.publishedStory("Blade of Dawn")
	dbtest.CreateEpisode(t, suite.db, story, 1)
	dbtest.CreateEpisode(t, suite.db, story, 2)

	w := suite.do(http.MethodGet, "/api/v1/stories", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.Story `json:"items"`
		Total int64          `json:"total"`
		Limit int            `json:"limit"`
	}
	suite.decode(w, &list)
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, 20, list.Limit)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "blade-of-dawn", list.Items[0].Slug)

	w = suite.do(http.MethodGet, "/api/v1/stories/blade-of-dawn", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "author@example.com", "author emails stay private")

	w = suite.do(http.MethodGet, "/api/v1/stories/blade-of-dawn/episodes/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail content.EpisodeDetail
	suite.decode(w, &detail)
	assert.Nil(t, detail.Prev)
	require.NotNil(t, detail.Next)
	assert.Equal(t, 2, *detail.Next)

	assert.Equal(t, http.StatusUnprocessableEntity, suite.do(http.MethodGet, "/api/v1/stories/blade-of-dawn/episodes/zero", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, suite.do(http.MethodGet, "/api/v1/stories/blade-of-dawn/episodes/9", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, suite.do(http.MethodGet, "/api/v1/stories/missing", nil, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, suite.do(http.MethodGet, "/api/v1/stories?sort=oldest", nil, nil).Code)
}

func (suite *HandlersTestSuite) TestArticlesCategoriesAuthorsCommunity() {
	t := suite.T()
	dbtest.CreateArticle(t, suite.db, suite.author, "Release Notes")
	suite.publishedStory("Quiet Harbor")

	w := suite.do(http.MethodGet, "/api/v1/articles", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "body of Release Notes", "lists omit article bodies")

	w = suite.do(http.MethodGet, "/api/v1/articles/release-notes", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "body of Release Notes")

	assert.Equal(t, http.StatusOK, suite.do(http.MethodGet, "/api/v1/categories", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, suite.do(http.MethodGet, "/api/v1/categories/unknown", nil, nil).Code)

	w = suite.do(http.MethodGet, "/api/v1/authors/author", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page content.AuthorPage
	suite.decode(w, &page)
	assert.Len(t, page.Stories, 1)
	assert.Len(t, page.Articles, 1)

	assert.Equal(t, http.StatusOK, suite.do(http.MethodGet, "/api/v1/community", nil, nil).Code)
}

func (suite *HandlersTestSuite) TestSearchFallsBackToDatabase() {
	t := suite.T()
	suite.publishedStory("Moonlit Ronin")
	dbtest.CreateArticle(t, suite.db, suite.author, "Ronin Art Process")

	w := suite.do(http.MethodGet, "/api/v1/search?q=ronin", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Total   int64  `json:"total"`
		Backend string `json:"backend"`
	}
	suite.decode(w, &res)
	assert.EqualValues(t, 2, res.Total)
	assert.Equal(t, "database", res.Backend)

	w = suite.do(http.MethodGet, "/api/v1/search?q=", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "q", suite.errorOf(w).Field)
}

func (suite *HandlersTestSuite) TestAdminContentLifecycle() {
	t := suite.T()

	w := suite.do(http.MethodPost, "/api/v1/admin/categories", map[string]string{"name": "Fantasy"}, suite.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cat struct {
		Category models.Category `json:"category"`
	}
	suite.decode(w, &cat)

	w = suite.do(http.MethodPost, "/api/v1/admin/stories", map[string]interface{}{
		"title": "Crown of Ash", "synopsis": "A fallen kingdom", "category_id": cat.Category.ID, "status": "published",
	}, suite.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Story models.Story `json:"story"`
	}
	suite.decode(w, &created)
	assert.Equal(t, "crown-of-ash", created.Story.Slug)
	assert.Equal(t, suite.admin.ID, created.Story.AuthorID)

	w = suite.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/stories/%s/episodes", created.Story.ID), map[string]interface{}{
		"number": 1, "title": "Embers", "status": "published",
		"assets": []map[string]interface{}{{"url": "https://cdn.example/1.jpg"}, {"url": "https://cdn.example/2.jpg"}},
	}, suite.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ep struct {
		Episode models.Episode `json:"episode"`
	}
	suite.decode(w, &ep)

	w = suite.do(http.MethodGet, "/api/v1/stories/crown-of-ash/episodes/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://cdn.example/2.jpg")

	w = suite.do(http.MethodPut, "/api/v1/admin/stories/"+created.Story.ID, map[string]interface{}{
		"title": "Crown of Ash", "status": "draft",
	}, suite.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusNotFound, suite.do(http.MethodGet, "/api/v1/stories/crown-of-ash", nil, nil).Code,
		"drafts are not public")

	assert.Equal(t, http.StatusOK, suite.do(http.MethodDelete, "/api/v1/admin/episodes/"+ep.Episode.ID, nil, suite.admin).Code)
	assert.Equal(t, http.StatusOK, suite.do(http.MethodDelete, "/api/v1/admin/stories/"+created.Story.ID, nil, suite.admin).Code)
	assert.Equal(t, http.StatusNotFound, suite.do(http.MethodDelete, "/api/v1/admin/stories/"+created.Story.ID, nil, suite.admin).Code)

	w = suite.do(http.MethodPost, "/api/v1/admin/articles", map[string]string{"title": "", "body": "x"}, suite.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "title", suite.errorOf(w).Field)
}

func (suite *HandlersTestSuite) TestAdminRoutesRequireAdmin() {
	t := suite.T()
	body := map[string]string{"name": "Horror"}

	assert.Equal(t, http.StatusUnauthorized, suite.do(http.MethodPost, "/api/v1/admin/categories", body, nil).Code)
	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodPost, "/api/v1/admin/categories", body, suite.alice).Code)
	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodGet, "/api/v1/admin/stats", nil, suite.author).Code)
}
