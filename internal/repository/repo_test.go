package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/isavelev/yatube/internal/domain"
)

// newTestDB creates an in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open in-memory sqlite")

	err = db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Follow{},
	)
	require.NoError(t, err, "failed to migrate schema")

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createGroup(t *testing.T, db *gorm.DB, title, slug string) *domain.Group {
	t.Helper()
	group := &domain.Group{Title: title, Slug: slug}
	require.NoError(t, db.Create(group).Error)
	return group
}

func createPostAt(t *testing.T, db *gorm.DB, author *domain.User, group *domain.Group, text string, at time.Time) *domain.Post {
	t.Helper()
	post := &domain.Post{Text: text, AuthorID: author.ID, CreatedAt: at}
	if group != nil {
		post.GroupID = &group.ID
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

func followCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&domain.Follow{}).Count(&count).Error)
	return count
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
