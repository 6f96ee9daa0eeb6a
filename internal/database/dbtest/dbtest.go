// Package dbtest opens throwaway sqlite databases for package tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/seiixin/gunwadex/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// Open returns a migrated in-memory sqlite database private to the test
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:gunwadex_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := database.Open("sqlite", dsn, logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.MigrateDB(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}
