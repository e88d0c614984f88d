package repository

import (
	"context"
	"errors"

	"github.com/isavelev/yatube/internal/domain"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrPostNotFound  = errors.New("post not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	ByID(ctx context.Context, id uint) (*domain.User, error)
	ByUsername(ctx context.Context, username string) (*domain.User, error)
}

// GroupRepository defines persistence operations for groups.
type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	ByID(ctx context.Context, id uint) (*domain.Group, error)
	BySlug(ctx context.Context, slug string) (*domain.Group, error)
}

// PostQuery selects which feed a post listing belongs to. Zero value means
// the global feed; at most one selector is set at a time.
type PostQuery struct {
	GroupID    *uint // posts assigned to this group
	AuthorID   *uint // posts authored by this user
	FollowedBy *uint // posts authored by anyone this user follows
}

// PostRepository defines persistence operations for posts. List results are
// always ordered newest first.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id uint) error
	ByID(ctx context.Context, id uint) (*domain.Post, error)
	Count(ctx context.Context, q PostQuery) (int64, error)
	List(ctx context.Context, q PostQuery, limit, offset int) ([]domain.Post, error)
}

// CommentRepository defines persistence operations for comments.
// ListByPost returns comments in creation order, oldest first.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByPost(ctx context.Context, postID uint) ([]domain.Comment, error)
}

// FollowRepository defines persistence operations for follow edges.
// EnsureFollow and DeleteFollow are idempotent: repeating either leaves the
// edge in the same state and reports whether this call changed anything.
type FollowRepository interface {
	EnsureFollow(ctx context.Context, userID, authorID uint) (created bool, err error)
	DeleteFollow(ctx context.Context, userID, authorID uint) (removed bool, err error)
	IsFollowing(ctx context.Context, userID, authorID uint) (bool, error)
}
