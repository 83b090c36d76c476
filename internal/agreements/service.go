package agreements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/db"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/angelmondragon/residency-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const duplicateMessage = "you already have a pending or accepted agreement for this apartment"

type apartmentLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Apartment, error)
}

// MemberPromoter upgrades a tenant to member inside the decision transaction.
type MemberPromoter interface {
	PromoteToMember(ctx context.Context, tx *gorm.DB, email, name string) (bool, error)
}

type roleInvalidator interface {
	InvalidateRole(ctx context.Context, email string)
}

// Service runs the agreement request lifecycle.
type Service interface {
	SubmitRequest(ctx context.Context, tenant identity.Identity, apartmentID uuid.UUID) (*models.Agreement, error)
	Decide(ctx context.Context, admin identity.Identity, agreementID uuid.UUID, accept bool) (*DecisionResult, error)
	ListPending(ctx context.Context) ([]models.Agreement, error)
	List(ctx context.Context, status *enums.AgreementStatus) ([]models.Agreement, error)
	ListForTenant(ctx context.Context, tenantEmail string) ([]models.Agreement, error)
	HasActive(ctx context.Context, tenantEmail string, apartmentID uuid.UUID) (bool, error)
	ActiveLease(ctx context.Context, tenantEmail string) (*models.Agreement, error)
	CountByStatus(ctx context.Context) (map[enums.AgreementStatus]int64, error)
}

// ServiceParams groups the collaborators of the agreement service.
type ServiceParams struct {
	Repo       Repository
	Tx         db.TxRunner
	Apartments apartmentLookup
	Promoter   MemberPromoter
	Roles      roleInvalidator
	Metrics    *metrics.WorkflowMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo       Repository
	tx         db.TxRunner
	apartments apartmentLookup
	promoter   MemberPromoter
	roles      roleInvalidator
	metrics    *metrics.WorkflowMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("agreements repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Apartments == nil {
		return nil, fmt.Errorf("apartment lookup required")
	}
	if p.Promoter == nil {
		return nil, fmt.Errorf("member promoter required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       p.Repo,
		tx:         p.Tx,
		apartments: p.Apartments,
		promoter:   p.Promoter,
		roles:      p.Roles,
		metrics:    p.Metrics,
		logg:       p.Logger,
		now:        now,
	}, nil
}

// SubmitRequest creates a pending agreement for tenant on apartmentID. The
// pre-check gives a friendly error; the partial unique index settles races.
func (s *service) SubmitRequest(ctx context.Context, tenant identity.Identity, apartmentID uuid.UUID) (*models.Agreement, error) {
	email := normalizeEmail(tenant.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity email missing")
	}
	if apartmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "apartment id required")
	}

	apartment, err := s.apartments.Get(ctx, apartmentID)
	if err != nil {
		return nil, err
	}

	active, err := s.HasActive(ctx, email, apartmentID)
	if err != nil {
		return nil, err
	}
	if active {
		s.metrics.IncSubmission(metrics.OutcomeDuplicate)
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateAgreement, duplicateMessage)
	}

	name := strings.TrimSpace(tenant.DisplayName)
	if name == "" {
		name = email
	}
	agreement := &models.Agreement{
		ApartmentID:  apartment.ID,
		TenantEmail:  email,
		TenantName:   name,
		OwnerEmail:   apartment.OwnerEmail,
		BuildingName: apartment.BuildingName,
		ApartmentNo:  apartment.ApartmentNo,
		FloorNo:      apartment.FloorNo,
		BlockName:    apartment.BlockName,
		Rent:         apartment.Rent,
		Status:       enums.AgreementStatusPending,
		RequestDate:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, agreement); err != nil {
		if db.IsUniqueViolation(err, ActiveIndex) {
			s.metrics.IncSubmission(metrics.OutcomeDuplicate)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicateAgreement, err, duplicateMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create agreement")
	}

	s.metrics.IncSubmission(metrics.OutcomeCreated)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"agreement_id": agreement.ID.String(),
			"apartment_id": apartment.ID.String(),
			"tenant_email": email,
		})
		s.logg.Info(logCtx, "agreement.submitted")
	}
	return agreement, nil
}

// Decide moves a pending agreement to accepted or rejected. On accept the
// status update and the tenant promotion commit together or not at all.
func (s *service) Decide(ctx context.Context, admin identity.Identity, agreementID uuid.UUID, accept bool) (*DecisionResult, error) {
	adminEmail := normalizeEmail(admin.Email)
	if adminEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity email missing")
	}
	if agreementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agreement id required")
	}

	target := enums.AgreementStatusRejected
	if accept {
		target = enums.AgreementStatusAccepted
	}

	var result DecisionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		agreement, err := repo.FindByID(ctx, agreementID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "agreement not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agreement")
		}
		if agreement.Status != enums.AgreementStatusPending {
			return invalidTransition(agreement.Status)
		}

		decidedAt := s.now().UTC()
		rows, err := repo.TransitionStatus(ctx, agreement.ID, enums.AgreementStatusPending, target, adminEmail, decidedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update agreement status")
		}
		if rows == 0 {
			// another decision committed between the read and the update
			return invalidTransition(agreement.Status)
		}
		agreement.Status = target
		agreement.DecidedAt = &decidedAt
		agreement.DecidedBy = &adminEmail
		result.Agreement = agreement

		if !accept {
			return nil
		}
		promoted, err := s.promoter.PromoteToMember(ctx, tx, agreement.TenantEmail, agreement.TenantName)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote tenant")
		}
		result.Promoted = promoted
		return nil
	})
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide agreement")
		}
		if typed.Code() == pkgerrors.CodeStateConflict {
			s.metrics.IncDecision(metrics.OutcomeInvalidTransition)
		}
		return nil, err
	}

	if accept {
		s.metrics.IncDecision(metrics.OutcomeAccepted)
		if s.roles != nil {
			s.roles.InvalidateRole(ctx, result.Agreement.TenantEmail)
		}
	} else {
		s.metrics.IncDecision(metrics.OutcomeRejected)
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"agreement_id": result.Agreement.ID.String(),
			"status":       string(result.Agreement.Status),
			"decided_by":   adminEmail,
			"promoted":     result.Promoted,
		})
		s.logg.Info(logCtx, "agreement.decided")
	}
	return &result, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.Agreement, error) {
	status := enums.AgreementStatusPending
	return s.List(ctx, &status)
}

func (s *service) List(ctx context.Context, status *enums.AgreementStatus) ([]models.Agreement, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid agreement status")
	}
	list, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agreements")
	}
	return list, nil
}

func (s *service) ListForTenant(ctx context.Context, tenantEmail string) ([]models.Agreement, error) {
	list, err := s.repo.ListForTenant(ctx, tenantEmail)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tenant agreements")
	}
	return list, nil
}

func (s *service) HasActive(ctx context.Context, tenantEmail string, apartmentID uuid.UUID) (bool, error) {
	_, err := s.repo.FindActive(ctx, tenantEmail, apartmentID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active agreement")
}

// ActiveLease returns the accepted agreement that supplies the tenant's rent.
func (s *service) ActiveLease(ctx context.Context, tenantEmail string) (*models.Agreement, error) {
	agreement, err := s.repo.FindLatestAccepted(ctx, tenantEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no accepted agreement for tenant")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accepted agreement")
	}
	return agreement, nil
}

func (s *service) CountByStatus(ctx context.Context) (map[enums.AgreementStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count agreements")
	}
	return counts, nil
}

func invalidTransition(current enums.AgreementStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "agreement is no longer pending").
		WithDetails(map[string]any{"status": current})
}
