package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/auth"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator map[string]*models.User

func (s stubValidator) ValidateToken(token string) (*models.User, error) {
	switch token {
	case "banned":
		return nil, auth.ErrAccountSuspended
	}
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	v := stubValidator{
		"reader": {ID: "u-reader", Role: models.RoleUser},
		"admin":  {ID: "u-admin", Role: models.RoleAdmin},
	}

	router := gin.New()
	whoami := func(c *gin.Context) {
		id, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	}
	router.GET("/private", RequireAuth(v), whoami)
	router.GET("/public", OptionalAuth(v), whoami)
	router.GET("/admin", RequireAuth(v), RequireAdmin(), whoami)
	return router
}

func call(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	router := newAuthRouter()

	assert.Equal(t, http.StatusUnauthorized, call(router, "/private", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(router, "/private", "garbage").Code)
	assert.Equal(t, http.StatusOK, call(router, "/private", "reader").Code)

	w := call(router, "/private", "banned")
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ACCOUNT_SUSPENDED", body["code"])
}

func TestOptionalAuth(t *testing.T) {
	router := newAuthRouter()

	w := call(router, "/public", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":null}`, w.Body.String())

	w = call(router, "/public", "garbage")
	assert.Equal(t, http.StatusOK, w.Code, "bad tokens fall back to guest")

	w = call(router, "/public", "reader")
	assert.JSONEq(t, `{"user_id":"u-reader"}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, call(router, "/public", "banned").Code)
}

func TestRequireAdmin(t *testing.T) {
	router := newAuthRouter()

	assert.Equal(t, http.StatusForbidden, call(router, "/admin", "reader").Code)
	assert.Equal(t, http.StatusOK, call(router, "/admin", "admin").Code)
}

func TestBearerTokenFromQuery(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, "abc", BearerToken(c))

	c.Request.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, BearerToken(c), "non-bearer schemes are ignored")
}
