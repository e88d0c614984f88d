package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/isavelev/yatube/internal/domain"
)

// GormPostRepository implements PostRepository using GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GORM-backed post repository.
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(ctx context.Context, post *domain.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// Update saves field changes of an existing post. Author and ID are never
// touched: only text, group, and image columns are written. Rows affected is
// not used to detect a missing post: MySQL reports changed rows rather than
// matched rows, so a resubmitted identical edit affects zero. Callers resolve
// the post before updating.
func (r *GormPostRepository) Update(ctx context.Context, post *domain.Post) error {
	return r.db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{
			"text":        post.Text,
			"group_id":    post.GroupID,
			"image":       post.Image,
			"image_thumb": post.ImageThumb,
		}).Error
}

func (r *GormPostRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Post{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ByID resolves a post by primary key with its author and group preloaded.
func (r *GormPostRepository) ByID(ctx context.Context, id uint) (*domain.Post, error) {
	var post domain.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Group").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// scoped applies the feed selector to a posts query.
func (r *GormPostRepository) scoped(ctx context.Context, q PostQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&domain.Post{})
	switch {
	case q.GroupID != nil:
		tx = tx.Where("group_id = ?", *q.GroupID)
	case q.AuthorID != nil:
		tx = tx.Where("author_id = ?", *q.AuthorID)
	case q.FollowedBy != nil:
		tx = tx.Where(
			"author_id IN (?)",
			r.db.Model(&domain.Follow{}).Select("author_id").Where("user_id = ?", *q.FollowedBy),
		)
	}
	return tx
}

func (r *GormPostRepository) Count(ctx context.Context, q PostQuery) (int64, error) {
	var count int64
	if err := r.scoped(ctx, q).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// List returns a slice of the selected feed, newest first. Ties on the
// creation timestamp fall back to descending ID so pages are stable.
func (r *GormPostRepository) List(ctx context.Context, q PostQuery, limit, offset int) ([]domain.Post, error) {
	var posts []domain.Post
	err := r.scoped(ctx, q).
		Preload("Author").
		Preload("Group").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

var _ PostRepository = (*GormPostRepository)(nil)
