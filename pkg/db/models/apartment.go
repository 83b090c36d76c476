package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Apartment is a rentable unit owned by the admin who listed it.
type Apartment struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerEmail   string          `gorm:"column:owner_email;not null"`
	BuildingName string          `gorm:"column:building_name;not null"`
	ApartmentNo  string          `gorm:"column:apartment_no;not null"`
	FloorNo      int             `gorm:"column:floor_no;not null"`
	BlockName    string          `gorm:"column:block_name;not null"`
	Rent         decimal.Decimal `gorm:"column:rent;type:numeric(12,2);not null"`
	IsAvailable  bool            `gorm:"column:is_available;not null"`
	ImageURL     *string         `gorm:"column:image_url"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
