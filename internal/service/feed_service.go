package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/isavelev/yatube/internal/domain"
	"github.com/isavelev/yatube/internal/events"
	"github.com/isavelev/yatube/internal/media"
	"github.com/isavelev/yatube/internal/pagination"
	"github.com/isavelev/yatube/internal/repository"
	pkglog "github.com/isavelev/yatube/pkg/log"
)

// feedService implements FeedService.
type feedService struct {
	users     repository.UserRepository
	groups    repository.GroupRepository
	posts     repository.PostRepository
	comments  repository.CommentRepository
	follows   repository.FollowRepository
	processor *media.Processor
	publisher events.Publisher
	perPage   int
}

// NewFeedService creates a new FeedService instance.
func NewFeedService(
	users repository.UserRepository,
	groups repository.GroupRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	follows repository.FollowRepository,
	processor *media.Processor,
	publisher events.Publisher,
) FeedService {
	return &feedService{
		users:     users,
		groups:    groups,
		posts:     posts,
		comments:  comments,
		follows:   follows,
		processor: processor,
		publisher: publisher,
		perPage:   pagination.PostsPerPage,
	}
}

// listPage runs the count-clamp-fetch sequence shared by all four feeds.
func (s *feedService) listPage(ctx context.Context, q repository.PostQuery, page int) (pagination.Page[domain.Post], error) {
	total, err := s.posts.Count(ctx, q)
	if err != nil {
		return pagination.Page[domain.Post]{}, err
	}

	number, offset := pagination.Clamp(page, total, s.perPage)
	posts, err := s.posts.List(ctx, q, s.perPage, offset)
	if err != nil {
		return pagination.Page[domain.Post]{}, err
	}

	return pagination.New(posts, number, s.perPage, total), nil
}

// GlobalFeed returns all posts, newest first.
func (s *feedService) GlobalFeed(ctx context.Context, page int) (pagination.Page[domain.Post], error) {
	return s.listPage(ctx, repository.PostQuery{}, page)
}

// GroupFeed resolves the group by slug and returns its posts, newest first.
func (s *feedService) GroupFeed(ctx context.Context, slug string, page int) (*domain.Group, pagination.Page[domain.Post], error) {
	group, err := s.groups.BySlug(ctx, slug)
	if err != nil {
		return nil, pagination.Page[domain.Post]{}, err
	}

	feed, err := s.listPage(ctx, repository.PostQuery{GroupID: &group.ID}, page)
	if err != nil {
		return nil, pagination.Page[domain.Post]{}, err
	}
	return group, feed, nil
}

// ProfileFeed resolves the author by username and returns their posts plus
// whether the viewer follows them.
func (s *feedService) ProfileFeed(ctx context.Context, username string, viewerID *uint, page int) (*ProfileFeed, error) {
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	feed, err := s.listPage(ctx, repository.PostQuery{AuthorID: &author.ID}, page)
	if err != nil {
		return nil, err
	}

	following := false
	if viewerID != nil {
		following, err = s.follows.IsFollowing(ctx, *viewerID, author.ID)
		if err != nil {
			return nil, err
		}
	}

	return &ProfileFeed{Author: author, Page: feed, Following: following}, nil
}

// FollowingFeed returns posts authored by anyone the viewer follows. A viewer
// who follows nobody gets an empty page, not an error.
func (s *feedService) FollowingFeed(ctx context.Context, viewerID uint, page int) (pagination.Page[domain.Post], error) {
	return s.listPage(ctx, repository.PostQuery{FollowedBy: &viewerID}, page)
}

// PostDetail resolves a post with its comments, oldest first.
func (s *feedService) PostDetail(ctx context.Context, postID uint) (*PostDetail, error) {
	post, err := s.posts.ByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	return &PostDetail{Post: post, Comments: comments}, nil
}

// applyInput validates a submission and copies its fields onto the post.
func (s *feedService) applyInput(ctx context.Context, post *domain.Post, input PostInput) error {
	if strings.TrimSpace(input.Text) == "" {
		return ErrTextRequired
	}

	if input.GroupID != nil {
		if _, err := s.groups.ByID(ctx, *input.GroupID); err != nil {
			return err
		}
	}

	post.Text = input.Text
	post.GroupID = input.GroupID

	if input.Image != nil {
		imageKey, thumbKey, err := s.processor.SaveImage(ctx, input.Image.Reader, input.Image.Filename)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) {
				return ErrInvalidImage
			}
			return err
		}
		post.Image = imageKey
		post.ImageThumb = thumbKey
	}

	return nil
}

// CreatePost validates and persists a new post owned by authorID.
func (s *feedService) CreatePost(ctx context.Context, authorID uint, input PostInput) (*domain.Post, error) {
	post := &domain.Post{AuthorID: authorID}
	if err := s.applyInput(ctx, post, input); err != nil {
		return nil, err
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypePostCreated, post.ID, events.PostCreated{
		PostID:   post.ID,
		AuthorID: post.AuthorID,
		GroupID:  post.GroupID,
	})
	return post, nil
}

// PostForEdit resolves a post and checks the editor owns it.
func (s *feedService) PostForEdit(ctx context.Context, editorID, postID uint) (*domain.Post, error) {
	post, err := s.posts.ByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != editorID {
		return nil, ErrNotAuthor
	}
	return post, nil
}

// EditPost applies field updates in place, preserving the original author and
// id. Only the post's author may edit it.
func (s *feedService) EditPost(ctx context.Context, editorID, postID uint, input PostInput) (*domain.Post, error) {
	post, err := s.PostForEdit(ctx, editorID, postID)
	if err != nil {
		return nil, err
	}

	if err := s.applyInput(ctx, post, input); err != nil {
		return nil, err
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// AddComment persists a comment linking the author and the post.
func (s *feedService) AddComment(ctx context.Context, authorID, postID uint, text string) (*domain.Comment, error) {
	post, err := s.posts.ByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrTextRequired
	}

	comment := &domain.Comment{Text: text, AuthorID: authorID, PostID: post.ID}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeCommentAdded, post.ID, events.CommentAdded{
		CommentID: comment.ID,
		PostID:    post.ID,
		AuthorID:  authorID,
	})
	return comment, nil
}

// Follow idempotently ensures a follow edge from userID to the named author.
func (s *feedService) Follow(ctx context.Context, userID uint, username string) (*domain.User, error) {
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	created, err := s.follows.EnsureFollow(ctx, userID, author.ID)
	if err != nil {
		return nil, err
	}

	if created {
		s.publish(ctx, events.TypeFollowCreated, author.ID, events.FollowChanged{
			UserID:   userID,
			AuthorID: author.ID,
		})
	}
	return author, nil
}

// Unfollow idempotently removes the follow edge from userID to the named
// author.
func (s *feedService) Unfollow(ctx context.Context, userID uint, username string) (*domain.User, error) {
	author, err := s.users.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	removed, err := s.follows.DeleteFollow(ctx, userID, author.ID)
	if err != nil {
		return nil, err
	}

	if removed {
		s.publish(ctx, events.TypeFollowDeleted, author.ID, events.FollowChanged{
			UserID:   userID,
			AuthorID: author.ID,
		})
	}
	return author, nil
}

// publish sends a domain event best-effort. Failures are logged, never
// surfaced to the caller.
func (s *feedService) publish(ctx context.Context, eventType string, key uint, payload interface{}) {
	l := pkglog.Ctx(ctx)

	event, err := events.NewEvent(eventType, strconv.FormatUint(uint64(key), 10), payload)
	if err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

var _ FeedService = (*feedService)(nil)
