// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"ai-trading-assistant-go/internal/database"
	"ai-trading-assistant-go/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a fresh in-memory sqlite database with every table migrated.
// The pool is pinned to one connection so the in-memory schema is shared.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with the given balance.
func CreateUser(t *testing.T, db *gorm.DB, username string, balance float64) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Balance:      balance,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
