package payments

import (
	"time"

	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentDTO struct {
	ID            uuid.UUID           `json:"id"`
	TenantEmail   string              `json:"tenant_email"`
	AgreementID   uuid.UUID           `json:"agreement_id"`
	ApartmentID   uuid.UUID           `json:"apartment_id"`
	BuildingName  string              `json:"building_name"`
	ApartmentNo   string              `json:"apartment_no"`
	FloorNo       int                 `json:"floor_no"`
	BlockName     string              `json:"block_name"`
	Rent          decimal.Decimal     `json:"rent"`
	OriginalRent  decimal.Decimal     `json:"original_rent"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
	Month         string              `json:"month"`
	TransactionID string              `json:"transaction_id"`
	PaymentDate   time.Time           `json:"payment_date"`
	Status        enums.PaymentStatus `json:"status"`
}

// SessionDTO adds the amount due to the stored session state.
type SessionDTO struct {
	*Session
	AmountDue decimal.Decimal `json:"amount_due"`
}

// CouponOutcome is returned by the apply-coupon endpoint.
type CouponOutcome struct {
	Session *SessionDTO    `json:"session"`
	Result  coupons.Result `json:"result"`
}

func FromModel(m *models.Payment) *PaymentDTO {
	if m == nil {
		return nil
	}
	return &PaymentDTO{
		ID:            m.ID,
		TenantEmail:   m.TenantEmail,
		AgreementID:   m.AgreementID,
		ApartmentID:   m.ApartmentID,
		BuildingName:  m.BuildingName,
		ApartmentNo:   m.ApartmentNo,
		FloorNo:       m.FloorNo,
		BlockName:     m.BlockName,
		Rent:          m.Rent,
		OriginalRent:  m.OriginalRent,
		CouponCode:    m.CouponCode,
		Month:         m.Month,
		TransactionID: m.TransactionID,
		PaymentDate:   m.PaymentDate,
		Status:        m.Status,
	}
}

func FromModels(list []models.Payment) []PaymentDTO {
	out := make([]PaymentDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}

func FromSession(s *Session) *SessionDTO {
	if s == nil {
		return nil
	}
	return &SessionDTO{Session: s, AmountDue: s.Amount()}
}
