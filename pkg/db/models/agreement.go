package models

import (
	"time"

	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Agreement is a tenant's request to rent an apartment. Apartment and tenant
// fields are copied in at submission time.
type Agreement struct {
	ID           uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ApartmentID  uuid.UUID             `gorm:"column:apartment_id;type:uuid;not null"`
	TenantEmail  string                `gorm:"column:tenant_email;not null"`
	TenantName   string                `gorm:"column:tenant_name;not null"`
	OwnerEmail   string                `gorm:"column:owner_email;not null"`
	BuildingName string                `gorm:"column:building_name;not null"`
	ApartmentNo  string                `gorm:"column:apartment_no;not null"`
	FloorNo      int                   `gorm:"column:floor_no;not null"`
	BlockName    string                `gorm:"column:block_name;not null"`
	Rent         decimal.Decimal       `gorm:"column:rent;type:numeric(12,2);not null"`
	Status       enums.AgreementStatus `gorm:"column:status;type:agreement_status;not null"`
	RequestDate  time.Time             `gorm:"column:request_date;not null"`
	DecidedAt    *time.Time            `gorm:"column:decided_at"`
	DecidedBy    *string               `gorm:"column:decided_by"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
