package agreements

import (
	"time"

	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgreementDTO is the API view of an agreement request.
type AgreementDTO struct {
	ID           uuid.UUID             `json:"id"`
	ApartmentID  uuid.UUID             `json:"apartment_id"`
	TenantEmail  string                `json:"tenant_email"`
	TenantName   string                `json:"tenant_name"`
	OwnerEmail   string                `json:"owner_email"`
	BuildingName string                `json:"building_name"`
	ApartmentNo  string                `json:"apartment_no"`
	FloorNo      int                   `json:"floor_no"`
	BlockName    string                `json:"block_name"`
	Rent         decimal.Decimal       `json:"rent"`
	Status       enums.AgreementStatus `json:"status"`
	RequestDate  time.Time             `json:"request_date"`
	DecidedAt    *time.Time            `json:"decided_at,omitempty"`
	DecidedBy    *string               `json:"decided_by,omitempty"`
}

// DecisionResult reports the decided agreement and whether the tenant was
// promoted to member as part of the same transaction.
type DecisionResult struct {
	Agreement *models.Agreement
	Promoted  bool
}

type DecisionDTO struct {
	Agreement AgreementDTO `json:"agreement"`
	Promoted  bool         `json:"promoted"`
}

func FromModel(m *models.Agreement) *AgreementDTO {
	if m == nil {
		return nil
	}
	return &AgreementDTO{
		ID:           m.ID,
		ApartmentID:  m.ApartmentID,
		TenantEmail:  m.TenantEmail,
		TenantName:   m.TenantName,
		OwnerEmail:   m.OwnerEmail,
		BuildingName: m.BuildingName,
		ApartmentNo:  m.ApartmentNo,
		FloorNo:      m.FloorNo,
		BlockName:    m.BlockName,
		Rent:         m.Rent,
		Status:       m.Status,
		RequestDate:  m.RequestDate,
		DecidedAt:    m.DecidedAt,
		DecidedBy:    m.DecidedBy,
	}
}

func FromModels(list []models.Agreement) []AgreementDTO {
	out := make([]AgreementDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}

func FromDecision(res *DecisionResult) *DecisionDTO {
	if res == nil || res.Agreement == nil {
		return nil
	}
	return &DecisionDTO{Agreement: *FromModel(res.Agreement), Promoted: res.Promoted}
}
