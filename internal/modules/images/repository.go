package images

import (
	"context"
	"errors"

	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"gorm.io/gorm"
)

// Repository defines tenant-scoped attachment metadata storage.
type Repository interface {
	Create(ctx context.Context, a *ImageAttachment) error
	ListFor(ctx context.Context, companyID string, entityType EntityType, entityID string) ([]*ImageAttachment, error)
	Get(ctx context.Context, companyID, id string) (*ImageAttachment, error)
	Delete(ctx context.Context, companyID, id string) error
}

type gormRepo struct{ db *gorm.DB }

func NewGormRepository(db *gorm.DB) Repository { return &gormRepo{db: db} }

func (r *gormRepo) Create(ctx context.Context, a *ImageAttachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *gormRepo) ListFor(ctx context.Context, companyID string, entityType EntityType, entityID string) ([]*ImageAttachment, error) {
	out := []*ImageAttachment{}
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND entity_type = ? AND entity_id = ?", companyID, entityType, entityID).
		Order("uploaded_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *gormRepo) Get(ctx context.Context, companyID, id string) (*ImageAttachment, error) {
	var a ImageAttachment
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("image", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormRepo) Delete(ctx context.Context, companyID, id string) error {
	res := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Delete(&ImageAttachment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("image", id)
	}
	return nil
}
