package apartments

import (
	"time"

	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApartmentDTO is the public view of a listed apartment.
type ApartmentDTO struct {
	ID           uuid.UUID       `json:"id"`
	OwnerEmail   string          `json:"owner_email"`
	BuildingName string          `json:"building_name"`
	ApartmentNo  string          `json:"apartment_no"`
	FloorNo      int             `json:"floor_no"`
	BlockName    string          `json:"block_name"`
	Rent         decimal.Decimal `json:"rent"`
	IsAvailable  bool            `json:"is_available"`
	ImageURL     *string         `json:"image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ListFilters narrows the public listing. Rent bounds are inclusive.
type ListFilters struct {
	MinRent       *decimal.Decimal
	MaxRent       *decimal.Decimal
	AvailableOnly bool
}

type ListInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

type ListResult struct {
	Items []ApartmentDTO  `json:"items"`
	Page  pagination.Page `json:"page"`
}

// CreateInput carries the manage-properties form fields.
type CreateInput struct {
	BuildingName string
	ApartmentNo  string
	FloorNo      int
	BlockName    string
	Rent         decimal.Decimal
	ImageURL     *string
}

// UpdateInput holds optional edits; nil fields are left unchanged.
type UpdateInput struct {
	BuildingName *string
	ApartmentNo  *string
	FloorNo      *int
	BlockName    *string
	Rent         *decimal.Decimal
	ImageURL     *string
}

// Availability summarises the apartment inventory for the admin profile.
type Availability struct {
	Total       int64 `json:"total"`
	Available   int64 `json:"available"`
	Unavailable int64 `json:"unavailable"`
}

func FromModel(m *models.Apartment) *ApartmentDTO {
	if m == nil {
		return nil
	}
	return &ApartmentDTO{
		ID:           m.ID,
		OwnerEmail:   m.OwnerEmail,
		BuildingName: m.BuildingName,
		ApartmentNo:  m.ApartmentNo,
		FloorNo:      m.FloorNo,
		BlockName:    m.BlockName,
		Rent:         m.Rent,
		IsAvailable:  m.IsAvailable,
		ImageURL:     m.ImageURL,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func FromModels(list []models.Apartment) []ApartmentDTO {
	out := make([]ApartmentDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
