package kernel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/cache"
	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/database"
	"github.com/seiixin/gunwadex/internal/database/dbtest"
	"github.com/seiixin/gunwadex/internal/email"
	"github.com/seiixin/gunwadex/internal/handlers"
	"github.com/seiixin/gunwadex/internal/models"
	"github.com/seiixin/gunwadex/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireRequiresInfrastructure(t *testing.T) {
	err := New().Wire()
	require.Error(t, err)

	var initErr *InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.ElementsMatch(t, []string{"database (DB)", "attachment store", "mailer"}, initErr.MissingDeps)
	assert.Contains(t, err.Error(), "Missing required dependencies")
}

func TestValidateRequiresWire(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	k := New().WithDB(dbtest.Open(t)).WithStore(store).WithMailer(email.LogMailer{})
	err = k.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not wired")
}

func TestMockServesRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	k, err := NewMock(db, store)
	require.NoError(t, err)
	require.NoError(t, k.Validate())
	assert.False(t, k.Search().Enabled())

	user := dbtest.CreateUser(t, db, "kernel", models.RoleUser)
	resp, err := k.Auth().GenerateTokenForUser(user)
	require.NoError(t, err)

	r := gin.New()
	k.Handlers().RegisterRoutes(r, handlers.RouteConfig{Tokens: k.Auth(), WebSocket: k.WebSocket()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	var order []int
	boom := errors.New("boom")

	k := New()
	k.OnCleanup(func(context.Context) error { order = append(order, 1); return nil })
	k.OnCleanup(func(context.Context) error { order = append(order, 2); return boom })
	k.OnCleanup(func(context.Context) error { order = append(order, 3); return nil })

	err := k.Cleanup(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 2, 1}, order)

	// hooks run once
	require.NoError(t, k.Cleanup(context.Background()))
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestBootstrapAndShutdown(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cfg := &config.Config{
		Environment: "test",
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			URL:    filepath.Join(dir, "gunwadex.db"),
		},
		Auth:    config.AuthConfig{JWTSecret: []byte("bootstrap-secret"), TokenTTL: time.Hour},
		Redis:   config.RedisConfig{Host: mr.Host(), Port: mr.Port()},
		Storage: config.StorageConfig{Backend: "local", LocalDir: filepath.Join(dir, "attachments")},
		Mail:    config.MailConfig{Backend: "log"},
	}

	k, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate())

	assert.NotNil(t, k.Cache())
	assert.Same(t, k.Cache(), cache.GetRedisClient())
	assert.Nil(t, k.SearchClient())

	k.Start()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, k.Cleanup(ctx))
	assert.Nil(t, cache.GetRedisClient())
}

func TestBootstrapRejectsUnknownStorage(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "x.db")},
		Auth:     config.AuthConfig{JWTSecret: []byte("secret")},
		Storage:  config.StorageConfig{Backend: "ftp"},
	}

	k, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, k)
	assert.Contains(t, err.Error(), "storage")
}
