package db

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the sqlite database shared by the poller and the admin surface.
// sqlite serializes writers, so every operation runs as its own short-lived
// transaction rather than holding connections across calls.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the sqlite database and migrates the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := gdb.AutoMigrate(
		&EmailTemplate{},
		&EmailTemplateSKU{},
		&SMSTemplate{},
		&SMSTemplateSKU{},
		&Setting{},
		&EmailSentLog{},
		&SMSSentLog{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Info("sqlite database ready", zap.String("path", path))

	return &Store{db: gdb, logger: log}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
