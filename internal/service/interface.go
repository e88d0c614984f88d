package service

import (
	"context"
	"errors"
	"io"

	"github.com/isavelev/yatube/internal/domain"
	"github.com/isavelev/yatube/internal/pagination"
)

var (
	ErrTextRequired       = errors.New("text is required")
	ErrInvalidImage       = errors.New("uploaded file is not a valid image")
	ErrNotAuthor          = errors.New("only the author can edit a post")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Upload is an optional image attachment on a post submission.
type Upload struct {
	Reader   io.Reader
	Filename string
}

// PostInput carries the writable fields of a post submission.
type PostInput struct {
	Text    string
	GroupID *uint
	Image   *Upload
}

// ProfileFeed is one page of an author's posts plus whether the current
// viewer already follows them (always false for anonymous viewers).
type ProfileFeed struct {
	Author    *domain.User
	Page      pagination.Page[domain.Post]
	Following bool
}

// PostDetail is a post with its comments in creation order, oldest first.
type PostDetail struct {
	Post     *domain.Post
	Comments []domain.Comment
}

// FeedService resolves which posts are visible in each feed context and
// enforces authorization rules on the mutating actions.
type FeedService interface {
	GlobalFeed(ctx context.Context, page int) (pagination.Page[domain.Post], error)
	GroupFeed(ctx context.Context, slug string, page int) (*domain.Group, pagination.Page[domain.Post], error)
	ProfileFeed(ctx context.Context, username string, viewerID *uint, page int) (*ProfileFeed, error)
	FollowingFeed(ctx context.Context, viewerID uint, page int) (pagination.Page[domain.Post], error)
	PostDetail(ctx context.Context, postID uint) (*PostDetail, error)

	CreatePost(ctx context.Context, authorID uint, input PostInput) (*domain.Post, error)
	PostForEdit(ctx context.Context, editorID, postID uint) (*domain.Post, error)
	EditPost(ctx context.Context, editorID, postID uint, input PostInput) (*domain.Post, error)
	AddComment(ctx context.Context, authorID, postID uint, text string) (*domain.Comment, error)
	Follow(ctx context.Context, userID uint, username string) (*domain.User, error)
	Unfollow(ctx context.Context, userID uint, username string) (*domain.User, error)
}

// AuthService manages user accounts and credential checks.
type AuthService interface {
	SignUp(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
}
