package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/seiixin/gunwadex/internal/comments"
	"github.com/seiixin/gunwadex/internal/content"
	"github.com/seiixin/gunwadex/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestDatabaseFailureIsOpaque500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "articles"`).
		WillReturnError(errors.New("pq: connection reset by peer"))

	commentSvc := comments.NewService(db)
	h := NewHandlers(Services{DB: db, Content: content.NewService(db, commentSvc, nil), Comments: commentSvc})
	router := gin.New()
	router.GET("/api/v1/articles", h.ListArticles)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body util.ErrorResponse
	require.NoError(t, jsonUnmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Empty(t, body.Details, "driver errors are not leaked outside debug mode")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthReportsDatabaseOutage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	mock.ExpectPing().WillReturnError(errors.New("dial tcp: connection refused"))

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	h := NewHandlers(Services{DB: db})
	router := gin.New()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"error"`)
}
