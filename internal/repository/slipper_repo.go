package repository

import (
	"context"

	"slippers/internal/models"

	"gorm.io/gorm"
)

// SlipperRepository is the read side of the catalog used for order pricing.
type SlipperRepository struct {
	db *gorm.DB
}

func NewSlipperRepository(db *gorm.DB) *SlipperRepository {
	return &SlipperRepository{db: db}
}

func (r *SlipperRepository) Create(ctx context.Context, s *models.Slipper) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ActiveByIDs returns the active slippers among ids. Missing or inactive ids
// are simply absent from the result.
func (r *SlipperRepository) ActiveByIDs(ctx context.Context, ids []uint) ([]models.Slipper, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []models.Slipper
	err := r.db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Find(&list).Error
	return list, err
}
