package apartments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/residency-backend/pkg/db"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type apartmentsRepository interface {
	Create(ctx context.Context, apartment *models.Apartment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
	Save(ctx context.Context, apartment *models.Apartment) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Apartment, int64, error)
	CountByAvailability(ctx context.Context) (Availability, error)
}

// Service exposes the public listing and the manage-properties operations.
type Service interface {
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
	Create(ctx context.Context, ownerEmail string, input CreateInput) (*models.Apartment, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Apartment, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.Apartment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Availability(ctx context.Context) (Availability, error)
}

type service struct {
	repo apartmentsRepository
}

func NewService(repo apartmentsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("apartments repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	f := input.Filters
	if (f.MinRent != nil && f.MinRent.IsNegative()) || (f.MaxRent != nil && f.MaxRent.IsNegative()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rent bounds must not be negative")
	}
	if f.MinRent != nil && f.MaxRent != nil && f.MinRent.GreaterThan(*f.MaxRent) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_rent must not exceed max_rent")
	}

	params := input.Pagination.Normalize()
	list, total, err := s.repo.List(ctx, f, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list apartments")
	}
	return &ListResult{Items: FromModels(list), Page: pagination.NewPage(params, total)}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Apartment, error) {
	apartment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "apartment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load apartment")
	}
	return apartment, nil
}

func (s *service) Create(ctx context.Context, ownerEmail string, input CreateInput) (*models.Apartment, error) {
	apartment := &models.Apartment{
		OwnerEmail:   strings.ToLower(strings.TrimSpace(ownerEmail)),
		BuildingName: strings.TrimSpace(input.BuildingName),
		ApartmentNo:  strings.TrimSpace(input.ApartmentNo),
		FloorNo:      input.FloorNo,
		BlockName:    strings.TrimSpace(input.BlockName),
		Rent:         input.Rent.Round(2),
		IsAvailable:  true,
		ImageURL:     input.ImageURL,
	}
	if err := validate(apartment); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, apartment); err != nil {
		return nil, mapWriteError(err, "create apartment")
	}
	return apartment, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Apartment, error) {
	apartment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.BuildingName != nil {
		apartment.BuildingName = strings.TrimSpace(*input.BuildingName)
	}
	if input.ApartmentNo != nil {
		apartment.ApartmentNo = strings.TrimSpace(*input.ApartmentNo)
	}
	if input.FloorNo != nil {
		apartment.FloorNo = *input.FloorNo
	}
	if input.BlockName != nil {
		apartment.BlockName = strings.TrimSpace(*input.BlockName)
	}
	if input.Rent != nil {
		apartment.Rent = input.Rent.Round(2)
	}
	if input.ImageURL != nil {
		apartment.ImageURL = input.ImageURL
	}
	if err := validate(apartment); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, apartment); err != nil {
		return nil, mapWriteError(err, "update apartment")
	}
	return apartment, nil
}

func (s *service) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.Apartment, error) {
	rows, err := s.repo.SetAvailability(ctx, id, available)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update availability")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "apartment not found")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete apartment")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "apartment not found")
	}
	return nil
}

func (s *service) Availability(ctx context.Context) (Availability, error) {
	counts, err := s.repo.CountByAvailability(ctx)
	if err != nil {
		return Availability{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count apartments")
	}
	return counts, nil
}

func validate(a *models.Apartment) error {
	switch {
	case a.BuildingName == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "building_name is required")
	case a.ApartmentNo == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "apartment_no is required")
	case a.BlockName == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "block_name is required")
	case a.FloorNo < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "floor_no must not be negative")
	case !a.Rent.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "rent must be positive")
	}
	return nil
}

func mapWriteError(err error, action string) error {
	if db.IsUniqueViolation(err, UnitConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "apartment already listed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
