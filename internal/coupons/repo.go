package coupons

import (
	"context"

	"github.com/angelmondragon/residency-backend/internal/repo"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CodeConstraint is the unique constraint on coupon codes.
const CodeConstraint = "coupons_code_key"

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	coupon.Code = NormalizeCode(coupon.Code)
	return r.DB(ctx).Create(coupon).Error
}

func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB(ctx).Where("code = ?", NormalizeCode(code)).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB(ctx).First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// List returns coupons ordered by code, optionally only the available ones.
func (r *Repository) List(ctx context.Context, availableOnly bool) ([]models.Coupon, error) {
	var out []models.Coupon
	query := r.DB(ctx).Order("code ASC")
	if availableOnly {
		query = query.Where("available = ?", true)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", id).
		Update("available", available)
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Coupon{})
	return res.RowsAffected, res.Error
}
