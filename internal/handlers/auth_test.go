package handlers

import (
	"net/http"

	"github.com/seiixin/gunwadex/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *HandlersTestSuite) TestRegisterAndLogin() {
	t := suite.T()

	w := suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":        "Carol@Example.com",
		"username":     "carol",
		"password":     "correct-horse",
		"display_name": "Carol",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var reg auth.AuthResponse
	suite.decode(w, &reg)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "carol@example.com", reg.User.Email)

	w = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "carol@example.com", "password": "correct-horse",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = suite.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "carol@example.com", "password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestRegisterConflictsAndValidation() {
	t := suite.T()

	w := suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "alice@example.com", "username": "alice2", "password": "password123", "display_name": "A",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email", suite.errorOf(w).Field)

	w = suite.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email": "new@example.com", "username": "nu", "password": "password123", "display_name": "N",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "username", suite.errorOf(w).Field)

	w = suite.do(http.MethodPost, "/api/v1/auth/register", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestMe() {
	t := suite.T()

	w := suite.do(http.MethodGet, "/api/v1/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/auth/me", nil, suite.alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
}

func (suite *HandlersTestSuite) TestBannedTokenIsRefused() {
	t := suite.T()
	token := suite.token(suite.bob)
	require.NoError(t, suite.db.Model(suite.bob).Update("is_banned", true).Error)

	req := newRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := suite.send(req, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_SUSPENDED", suite.errorOf(w).Code)

	// optional-auth routes refuse banned tokens too
	req = newRequest(http.MethodPost, "/api/v1/views/track", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, suite.send(req, nil).Code)
}

func (suite *HandlersTestSuite) TestInvalidTokenOnOptionalRouteIsGuest() {
	t := suite.T()
	story := suite.publishedStory("Guest Story")

	req := newJSONRequest(t, http.MethodPost, "/api/v1/views/track", map[string]string{
		"target_type": "story", "target_id": story.ID,
	})
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := suite.send(req, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
