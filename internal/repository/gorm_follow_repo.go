package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isavelev/yatube/internal/domain"
)

// GormFollowRepository implements FollowRepository using GORM.
type GormFollowRepository struct {
	db *gorm.DB
}

// NewGormFollowRepository creates a new GORM-backed follow repository.
func NewGormFollowRepository(db *gorm.DB) *GormFollowRepository {
	return &GormFollowRepository{db: db}
}

// EnsureFollow creates the (user, author) edge if absent. The atomic
// ON CONFLICT DO NOTHING upsert against the pair's unique index makes
// concurrent repeats race-safe: at most one row ever exists.
func (r *GormFollowRepository) EnsureFollow(ctx context.Context, userID, authorID uint) (bool, error) {
	edge := domain.Follow{UserID: userID, AuthorID: authorID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "author_id"}},
			DoNothing: true,
		}).
		Create(&edge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteFollow removes the (user, author) edge if present. Deleting an
// absent edge is a no-op, not an error.
func (r *GormFollowRepository) DeleteFollow(ctx context.Context, userID, authorID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&domain.Follow{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IsFollowing checks if userID follows authorID.
func (r *GormFollowRepository) IsFollowing(ctx context.Context, userID, authorID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ FollowRepository = (*GormFollowRepository)(nil)
