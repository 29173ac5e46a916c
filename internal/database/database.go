package database

import (
	"fmt"
	"strings"

	"ai-trading-assistant-go/internal/config"
	"ai-trading-assistant-go/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection and performs auto-migration.
// DSNs starting with postgres:// are opened with the postgres driver, anything else is a sqlite path.
func NewDatabase(cfg *config.Database, debug bool) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(Dialector(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Dialector picks the gorm driver for a DSN.
func Dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// AutoMigrate creates or updates every table. Existing rows are kept.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// TableCounts returns the row count of every table, keyed by table name.
func TableCounts(db *gorm.DB) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, m := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("failed to parse model: %w", err)
		}
		var n int64
		if err := db.Model(m).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", stmt.Schema.Table, err)
		}
		counts[stmt.Schema.Table] = n
	}
	return counts, nil
}
