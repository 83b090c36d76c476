package apartments

import (
	"context"

	"github.com/angelmondragon/residency-backend/internal/repo"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnitConstraint is the unique constraint on building, block and apartment number.
const UnitConstraint = "apartments_unit_key"

// Repository persists apartments.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *Repository) Create(ctx context.Context, apartment *models.Apartment) error {
	if apartment.ID == uuid.Nil {
		apartment.ID = uuid.New()
	}
	return r.DB(ctx).Create(apartment).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Apartment, error) {
	var apartment models.Apartment
	if err := r.DB(ctx).First(&apartment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &apartment, nil
}

func (r *Repository) Save(ctx context.Context, apartment *models.Apartment) error {
	return r.DB(ctx).Save(apartment).Error
}

// SetAvailability flips the availability flag and returns the affected rows.
func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Apartment{}).
		Where("id = ?", id).
		Update("is_available", available)
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Apartment{})
	return res.RowsAffected, res.Error
}

// List returns one page of apartments ordered by building, block and number,
// plus the total number of rows matching filters.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Apartment, int64, error) {
	query := r.DB(ctx).Model(&models.Apartment{})
	if filters.MinRent != nil {
		query = query.Where("rent >= ?", *filters.MinRent)
	}
	if filters.MaxRent != nil {
		query = query.Where("rent <= ?", *filters.MaxRent)
	}
	if filters.AvailableOnly {
		query = query.Where("is_available = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var out []models.Apartment
	if err := query.
		Order("building_name ASC, block_name ASC, apartment_no ASC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountByAvailability returns how many apartments are available and unavailable.
func (r *Repository) CountByAvailability(ctx context.Context) (Availability, error) {
	var rows []struct {
		IsAvailable bool
		Count       int64
	}
	if err := r.DB(ctx).
		Model(&models.Apartment{}).
		Select("is_available, COUNT(*) AS count").
		Group("is_available").
		Scan(&rows).Error; err != nil {
		return Availability{}, err
	}
	var out Availability
	for _, row := range rows {
		if row.IsAvailable {
			out.Available = row.Count
		} else {
			out.Unavailable = row.Count
		}
	}
	out.Total = out.Available + out.Unavailable
	return out, nil
}
