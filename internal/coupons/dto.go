package coupons

import (
	"time"

	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/google/uuid"
)

type CouponDTO struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Discount    int       `json:"discount"`
	Description string    `json:"description"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateInput carries the manage-coupons form. Available defaults to true.
type CreateInput struct {
	Code        string
	Discount    int
	Description string
	Available   *bool
}

func FromModel(m *models.Coupon) *CouponDTO {
	if m == nil {
		return nil
	}
	return &CouponDTO{
		ID:          m.ID,
		Code:        m.Code,
		Discount:    m.Discount,
		Description: m.Description,
		Available:   m.Available,
		CreatedAt:   m.CreatedAt,
	}
}

func FromModels(list []models.Coupon) []CouponDTO {
	out := make([]CouponDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
