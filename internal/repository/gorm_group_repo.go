package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/isavelev/yatube/internal/domain"
)

// GormGroupRepository implements GroupRepository using GORM.
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GORM-backed group repository.
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

func (r *GormGroupRepository) Create(ctx context.Context, group *domain.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *GormGroupRepository) ByID(ctx context.Context, id uint) (*domain.Group, error) {
	var group domain.Group
	err := r.db.WithContext(ctx).First(&group, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (r *GormGroupRepository) BySlug(ctx context.Context, slug string) (*domain.Group, error) {
	var group domain.Group
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

var _ GroupRepository = (*GormGroupRepository)(nil)
