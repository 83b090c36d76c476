package dashboard

import (
	"context"
	"fmt"

	"github.com/angelmondragon/residency-backend/internal/apartments"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

type availabilityCounter interface {
	Availability(ctx context.Context) (apartments.Availability, error)
}

type roleCounter interface {
	CountByRole(ctx context.Context) (map[enums.Role]int64, error)
}

type agreementCounter interface {
	CountByStatus(ctx context.Context) (map[enums.AgreementStatus]int64, error)
}

// AdminOverview backs the admin profile page.
type AdminOverview struct {
	Apartments         apartments.Availability `json:"apartments"`
	AvailablePercent   decimal.Decimal         `json:"available_percent"`
	UnavailablePercent decimal.Decimal         `json:"unavailable_percent"`
	Users              int64                   `json:"users"`
	Members            int64                   `json:"members"`
	PendingAgreements  int64                   `json:"pending_agreements"`
	AcceptedAgreements int64                   `json:"accepted_agreements"`
	RolesBreakdown     map[enums.Role]int64    `json:"roles"`
}

type Service struct {
	apartments availabilityCounter
	roles      roleCounter
	agreements agreementCounter
}

func NewService(apartments availabilityCounter, roles roleCounter, agreements agreementCounter) (*Service, error) {
	if apartments == nil || roles == nil || agreements == nil {
		return nil, fmt.Errorf("dashboard counters required")
	}
	return &Service{apartments: apartments, roles: roles, agreements: agreements}, nil
}

func (s *Service) AdminOverview(ctx context.Context) (*AdminOverview, error) {
	availability, err := s.apartments.Availability(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	agreements, err := s.agreements.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &AdminOverview{
		Apartments:         availability,
		AvailablePercent:   percent(availability.Available, availability.Total),
		UnavailablePercent: percent(availability.Unavailable, availability.Total),
		Users:              roles[enums.RoleUser],
		Members:            roles[enums.RoleMember],
		PendingAgreements:  agreements[enums.AgreementStatusPending],
		AcceptedAgreements: agreements[enums.AgreementStatusAccepted],
		RolesBreakdown:     roles,
	}, nil
}

func percent(part, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(total)).Round(2)
}
