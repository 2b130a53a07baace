package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"librehub/database"
	"librehub/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// keep the single in-memory connection alive across the pool
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, db *gorm.DB, username string, isAdmin bool) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
		IsAdmin:  isAdmin,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedBook(t *testing.T, db *gorm.DB, title string, copies int) models.Book {
	t.Helper()
	book := models.Book{
		Title:           title,
		Author:          "Test Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	require.NoError(t, db.Create(&book).Error)
	return book
}

func principalFor(user models.User) Principal {
	return Principal{ID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}
}

func window(days int) (time.Time, time.Time) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, days)
}
