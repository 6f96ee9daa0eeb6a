package handlers

import (
	"net/http"

	"github.com/seiixin/gunwadex/internal/comments"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *HandlersTestSuite) TestAdminBanFlow() {
	t := suite.T()
	path := "/api/v1/admin/users/" + suite.bob.ID

	w := suite.do(http.MethodPost, path+"/ban", map[string]string{"reason": "spam"}, suite.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"is_banned":true`)

	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodGet, "/api/v1/auth/me", nil, suite.bob).Code)

	w = suite.do(http.MethodGet, "/api/v1/admin/users?banned=true", nil, suite.admin)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.User `json:"items"`
		Total int64         `json:"total"`
	}
	suite.decode(w, &list)
	require.EqualValues(t, 1, list.Total)
	assert.Equal(t, "bob", list.Items[0].Username)

	assert.Equal(t, http.StatusUnprocessableEntity, suite.do(http.MethodGet, "/api/v1/admin/users?banned=maybe", nil, suite.admin).Code)

	w = suite.do(http.MethodPost, path+"/unban", nil, suite.admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, suite.do(http.MethodGet, "/api/v1/auth/me", nil, suite.bob).Code)

	w = suite.do(http.MethodPost, "/api/v1/admin/users/"+suite.admin.ID+"/ban", nil, suite.admin)
	assert.Equal(t, http.StatusForbidden, w.Code, "admins cannot ban themselves")
}

func (suite *HandlersTestSuite) TestAdminSetRole() {
	t := suite.T()
	path := "/api/v1/admin/users/" + suite.alice.ID + "/role"

	w := suite.do(http.MethodPut, path, map[string]string{"role": "author"}, suite.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"role":"author"`)

	w = suite.do(http.MethodPut, path, map[string]string{"role": "overlord"}, suite.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "role", suite.errorOf(w).Field)

	w = suite.do(http.MethodPut, path, map[string]string{}, suite.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestAdminCommentModerationAndStats() {
	t := suite.T()
	story := suite.publishedStory("Glass Orchard")
	c, err := comments.NewService(suite.db).Create(suite.T().Context(), suite.alice.ID, comments.CreateInput{
		Target: models.TargetRef{Kind: models.TargetStory, ID: story.ID},
		Body:   "rude words",
	})
	require.NoError(t, err)
	listPath := "/api/v1/comments?target_type=story&target_id=" + story.ID

	require.Equal(t, http.StatusOK, suite.do(http.MethodPost, "/api/v1/admin/comments/"+c.ID+"/hide", nil, suite.admin).Code)
	assert.NotContains(t, suite.do(http.MethodGet, listPath, nil, nil).Body.String(), "rude words")

	w := suite.do(http.MethodGet, "/api/v1/admin/stats", nil, suite.admin)
	require.Equal(t, http.StatusOK, w.Code)
	var stats moderation.Stats
	suite.decode(w, &stats)
	assert.EqualValues(t, 4, stats.Users)
	assert.EqualValues(t, 1, stats.HiddenComments)

	require.Equal(t, http.StatusOK, suite.do(http.MethodPost, "/api/v1/admin/comments/"+c.ID+"/unhide", nil, suite.admin).Code)
	assert.Contains(t, suite.do(http.MethodGet, listPath, nil, nil).Body.String(), "rude words")

	require.Equal(t, http.StatusOK, suite.do(http.MethodDelete, "/api/v1/admin/comments/"+c.ID, nil, suite.admin).Code)
	assert.Equal(t, http.StatusNotFound, suite.do(http.MethodPost, "/api/v1/admin/comments/missing/hide", nil, suite.admin).Code)
}

func (suite *HandlersTestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", nil, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), `"database":"ok"`)
	assert.Contains(suite.T(), w.Body.String(), `"search":"database"`)
}
