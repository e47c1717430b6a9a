package testutil

import (
	"testing"

	"github.com/missionforge/server/cache"
	"github.com/missionforge/server/config"
	dbadapter "github.com/missionforge/server/db"
	"github.com/missionforge/server/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode: dbadapter.ModeMemory,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates a LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.New(config.CacheConfig{}) // empty RedisAddr selects LocalCache
	require.NoError(t, err, "SetupTestCache: New")
	return c
}
