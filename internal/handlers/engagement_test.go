package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/engagement"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *HandlersTestSuite) TestCommentLifecycle() {
	t := suite.T()
	story := suite.publishedStory("Paper Lanterns")

	w := suite.do(http.MethodPost, "/api/v1/comments", map[string]string{
		"target_type": "story", "target_id": story.ID, "body": "first!",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/v1/comments", map[string]string{
		"target_type": "story", "target_id": story.ID, "body": "first!",
	}, suite.alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Comment models.Comment `json:"comment"`
	}
	suite.decode(w, &created)

	w = suite.do(http.MethodPost, "/api/v1/comments", map[string]string{
		"target_type": "story", "target_id": story.ID, "parent_id": created.Comment.ID, "body": "welcome",
	}, suite.bob)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = suite.do(http.MethodGet, "/api/v1/comments?target_type=story&target_id="+story.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.Comment `json:"items"`
		Total int64            `json:"total"`
	}
	suite.decode(w, &list)
	assert.EqualValues(t, 1, list.Total, "replies are not top-level")

	w = suite.do(http.MethodGet, "/api/v1/comments/"+created.Comment.ID+"/replies", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "welcome")

	path := "/api/v1/comments/" + created.Comment.ID
	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodPut, path, map[string]string{"body": "hijack"}, suite.bob).Code)
	w = suite.do(http.MethodPut, path, map[string]string{"body": "first, edited"}, suite.alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "first, edited")

	assert.Equal(t, http.StatusForbidden, suite.do(http.MethodDelete, path, nil, suite.bob).Code)
	assert.Equal(t, http.StatusOK, suite.do(http.MethodDelete, path, nil, suite.alice).Code)
}

func (suite *HandlersTestSuite) TestCommentTargetValidation() {
	t := suite.T()

	w := suite.do(http.MethodGet, "/api/v1/comments?target_type=poll&target_id=x", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "target_type", suite.errorOf(w).Field)

	w = suite.do(http.MethodGet, "/api/v1/comments?target_type=story", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "target_id", suite.errorOf(w).Field)

	w = suite.do(http.MethodPost, "/api/v1/comments", map[string]string{
		"target_type": "story", "target_id": "no-such-story", "body": "hello",
	}, suite.alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestLikeFavoriteRateAndStatus() {
	t := suite.T()
	story := suite.publishedStory("Iron Lotus")
	target := map[string]string{"target_type": "story", "target_id": story.ID}

	w := suite.do(http.MethodPost, "/api/v1/reactions/like", target, suite.alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"liked":true,"count":1}`, w.Body.String())

	w = suite.do(http.MethodPost, "/api/v1/reactions/like", target, suite.alice)
	assert.JSONEq(t, `{"liked":false,"count":0}`, w.Body.String())

	w = suite.do(http.MethodPost, "/api/v1/favorites/toggle", target, suite.alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"favorited":true,"count":1}`, w.Body.String())

	w = suite.do(http.MethodGet, "/api/v1/favorites", nil, suite.alice)
	require.Equal(t, http.StatusOK, w.Code)
	var favs struct {
		Items []engagement.FavoriteItem `json:"items"`
	}
	suite.decode(w, &favs)
	require.Len(t, favs.Items, 1)
	assert.Equal(t, "iron-lotus", favs.Items[0].Slug)

	w = suite.do(http.MethodPost, "/api/v1/ratings", map[string]interface{}{"story_id": story.ID, "value": 4}, suite.alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = suite.do(http.MethodPost, "/api/v1/ratings", map[string]interface{}{"story_id": story.ID, "value": 2}, suite.bob)
	require.Equal(t, http.StatusOK, w.Code)
	var rating engagement.RatingResult
	suite.decode(w, &rating)
	assert.Equal(t, 3.0, rating.Average)
	assert.Equal(t, 2, rating.Count)

	w = suite.do(http.MethodPost, "/api/v1/ratings", map[string]interface{}{"story_id": story.ID, "value": 6}, suite.alice)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = suite.do(http.MethodGet, "/api/v1/engagement?target_type=story&target_id="+story.ID, nil, suite.alice)
	require.Equal(t, http.StatusOK, w.Code)
	var st engagement.Status
	suite.decode(w, &st)
	assert.False(t, st.Liked)
	assert.True(t, st.Favorited)
	require.NotNil(t, st.Rating)
	assert.Equal(t, 4, *st.Rating)
}

func (suite *HandlersTestSuite) TestTrackViewDeduplicatesGuestsByIP() {
	t := suite.T()
	story := suite.publishedStory("Night Market")
	body := map[string]string{"target_type": "story", "target_id": story.ID}

	track := func(ip string) engagement.ViewResult {
		req := newJSONRequest(t, http.MethodPost, "/api/v1/views/track", body)
		req.RemoteAddr = ip + ":40000"
		w := suite.send(req, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res engagement.ViewResult
		suite.decode(w, &res)
		return res
	}

	assert.True(t, track("203.0.113.7").Counted)
	assert.False(t, track("203.0.113.7").Counted)
	res := track("198.51.100.2")
	assert.True(t, res.Counted)
	assert.Equal(t, 2, res.ViewCount)

	w := suite.do(http.MethodPost, "/api/v1/views/track", map[string]string{
		"target_type": "comment", "target_id": story.ID,
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "comments are not viewable")
}

func (suite *HandlersTestSuite) TestTrackViewIgnoresForwardedForFromUntrustedPeers() {
	t := suite.T()
	story := suite.publishedStory("Paper Lanterns")
	body := map[string]string{"target_type": "story", "target_id": story.ID}

	track := func(router *gin.Engine, peer, forwarded string) engagement.ViewResult {
		req := newJSONRequest(t, http.MethodPost, "/api/v1/views/track", body)
		req.RemoteAddr = peer + ":40000"
		req.Header.Set("X-Forwarded-For", forwarded)
		w := httptestRecorder(router, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res engagement.ViewResult
		suite.decode(w, &res)
		return res
	}

	assert.True(t, track(suite.router, "203.0.113.7", "1.1.1.1").Counted)
	assert.False(t, track(suite.router, "203.0.113.7", "2.2.2.2").Counted)
	res := track(suite.router, "203.0.113.7", "3.3.3.3")
	assert.False(t, res.Counted)
	assert.Equal(t, 1, res.ViewCount)

	// behind a configured proxy the forwarded client is the viewer
	proxied, err := NewEngine([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	suite.handlers.RegisterRoutes(proxied, RouteConfig{Tokens: suite.auth})

	assert.True(t, track(proxied, "10.1.2.3", "198.51.100.20").Counted)
	assert.False(t, track(proxied, "10.9.9.9", "198.51.100.20").Counted)
	res = track(proxied, "10.1.2.3", "198.51.100.21")
	assert.True(t, res.Counted)
	assert.Equal(t, 3, res.ViewCount)
}

func (suite *HandlersTestSuite) TestNewEngineRejectsBadProxies() {
	_, err := NewEngine([]string{"not-an-ip"})
	assert.Error(suite.T(), err)
}

func (suite *HandlersTestSuite) TestContact() {
	t := suite.T()

	w := suite.do(http.MethodPut, "/api/v1/admin/contact-settings", map[string]string{
		"address": "12 Harbor Road", "phone": "+63 2 555 0100",
	}, suite.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = suite.do(http.MethodGet, "/api/v1/contact", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "12 Harbor Road")
	assert.NotContains(t, w.Body.String(), "recipient_email", "the inbox address stays private")

	w = suite.do(http.MethodPost, "/api/v1/contact/send", map[string]string{
		"name": "Ana", "email": "ana@example.com", "subject": "Hello", "message": "Love the site",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, suite.mail.sent, 2)

	w = suite.do(http.MethodPost, "/api/v1/contact/send", map[string]string{
		"name": "Ana", "email": "not-an-email", "subject": "Hello", "message": "hi",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "email", suite.errorOf(w).Field)
}

func (suite *HandlersTestSuite) TestContactIsRateLimited() {
	t := suite.T()
	router := gin.New()
	suite.handlers.RegisterRoutes(router, RouteConfig{
		Tokens: suite.auth,
		Limits: config.LimitsConfig{ContactPerMinute: 1},
	})

	body := map[string]string{"name": "Ana", "email": "ana@example.com", "subject": "Hi", "message": "One"}
	send := func() int {
		w := httptestRecorder(router, newJSONRequest(t, http.MethodPost, "/api/v1/contact/send", body))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
