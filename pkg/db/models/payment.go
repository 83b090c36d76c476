package models

import (
	"time"

	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment records a captured rent payment. Rent is the amount actually
// charged; OriginalRent is the agreement rent before any coupon.
type Payment struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantEmail   string              `gorm:"column:tenant_email;not null"`
	AgreementID   uuid.UUID           `gorm:"column:agreement_id;type:uuid;not null"`
	ApartmentID   uuid.UUID           `gorm:"column:apartment_id;type:uuid;not null"`
	BuildingName  string              `gorm:"column:building_name;not null"`
	ApartmentNo   string              `gorm:"column:apartment_no;not null"`
	FloorNo       int                 `gorm:"column:floor_no;not null"`
	BlockName     string              `gorm:"column:block_name;not null"`
	Rent          decimal.Decimal     `gorm:"column:rent;type:numeric(12,2);not null"`
	OriginalRent  decimal.Decimal     `gorm:"column:original_rent;type:numeric(12,2);not null"`
	CouponCode    *string             `gorm:"column:coupon_code"`
	Month         string              `gorm:"column:month;not null"`
	TransactionID string              `gorm:"column:transaction_id;not null;uniqueIndex"`
	PaymentDate   time.Time           `gorm:"column:payment_date;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
