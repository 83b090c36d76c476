package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/residency-backend/pkg/db"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxCodeLength = 32

type couponsRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context, availableOnly bool) ([]models.Coupon, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// Service is the manage-coupons surface plus the public coupon listing.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	ListAvailable(ctx context.Context) ([]models.Coupon, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.Coupon, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo couponsRepository
}

func NewService(repo couponsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo}, nil
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Coupon, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if len(code) > maxCodeLength || strings.ContainsAny(code, " \t\n") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code must be a single word of at most 32 characters")
	}
	if input.Discount < 0 || input.Discount > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}

	available := true
	if input.Available != nil {
		available = *input.Available
	}
	coupon := &models.Coupon{
		Code:        code,
		Discount:    input.Discount,
		Description: strings.TrimSpace(input.Description),
		Available:   available,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, CodeConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context) ([]models.Coupon, error) {
	list, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return list, nil
}

func (s *service) ListAvailable(ctx context.Context) ([]models.Coupon, error) {
	list, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return list, nil
}

func (s *service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.Coupon, error) {
	rows, err := s.repo.SetAvailability(ctx, id, available)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete coupon")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return nil
}
