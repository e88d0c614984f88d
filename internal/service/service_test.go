package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/isavelev/yatube/internal/domain"
	"github.com/isavelev/yatube/internal/events"
	"github.com/isavelev/yatube/internal/media"
	"github.com/isavelev/yatube/internal/repository"
	"github.com/isavelev/yatube/pkg/storage"
)

type testEnv struct {
	db    *gorm.DB
	feeds FeedService
	auth  AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Follow{},
	))

	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	feeds := NewFeedService(
		repository.NewGormUserRepository(db),
		repository.NewGormGroupRepository(db),
		repository.NewGormPostRepository(db),
		repository.NewGormCommentRepository(db),
		repository.NewGormFollowRepository(db),
		media.NewProcessor(store),
		events.NoopPublisher{},
	)
	auth := NewAuthService(repository.NewGormUserRepository(db))

	return &testEnv{db: db, feeds: feeds, auth: auth}
}

func (e *testEnv) user(t *testing.T, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, PasswordHash: "x"}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) group(t *testing.T, title, slug string) *domain.Group {
	t.Helper()
	g := &domain.Group{Title: title, Slug: slug}
	require.NoError(t, e.db.Create(g).Error)
	return g
}

func (e *testEnv) postAt(t *testing.T, author *domain.User, group *domain.Group, text string, at time.Time) *domain.Post {
	t.Helper()
	p := &domain.Post{Text: text, AuthorID: author.ID, CreatedAt: at}
	if group != nil {
		p.GroupID = &group.ID
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *testEnv) postText(t *testing.T, id uint) string {
	t.Helper()
	var p domain.Post
	require.NoError(t, e.db.First(&p, id).Error)
	return p.Text
}

func (e *testEnv) commentCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&domain.Comment{}).Count(&count).Error)
	return count
}

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var testCtx = context.Background()
