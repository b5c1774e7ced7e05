package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection and performs auto-migration.
// Existing rows are kept; the schema is only extended.
func NewDatabase(cfg config.Database) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "data/trading.db"
	}
	if !strings.Contains(dsn, ":memory:") {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if strings.Contains(dsn, ":memory:") {
		// Each connection to an in-memory database is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the tables for every persisted model.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
