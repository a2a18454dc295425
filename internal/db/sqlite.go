package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/utils"
)

type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewSQLiteService opens the embedded store. The connection pool is pinned
// to a single open connection so all writers serialize at the storage
// layer; concurrent updates to one record stay last-write-wins and
// nothing beyond that is lost.
func NewSQLiteService(log *logger.Logger) (*SQLiteService, error) {
	serviceLog := log.With("service", "SQLiteService")

	path := utils.GetEnv("SQLITE_PATH", "marketflow.db", log)
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)

	serviceLog.Info("Opening sqlite store...", "path", path)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		serviceLog.Error("Failed to open sqlite store", "error", err)
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("access sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteService{db: gdb, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB {
	return s.db
}
