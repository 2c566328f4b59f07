//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// The default tests run on the pure Go sqlite driver; this one covers
// the cgo driver.
func TestStoreOnCgoSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "meshflow.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s := NewStore(db, zaptest.NewLogger(t))
	require.NoError(t, s.AutoMigrate())
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	rec := &GenerationRecord{Prompt: "a leather sofa"}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "a leather sofa", got.Prompt)
	assert.Equal(t, StatusQueued, got.Status)
}
