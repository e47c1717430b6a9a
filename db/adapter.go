package db

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/missionforge/server/config"
	dbmysql "github.com/missionforge/server/db/mysql"
	dbsqlite "github.com/missionforge/server/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMemory = "memory"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMemory:
		// A uniquely named shared-cache memory DB: all pooled connections see
		// the same data, but independent Opens stay isolated.
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		return dbsqlite.Open(dsn)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
