package agreements

import (
	"context"
	"strings"
	"time"

	internalrepo "github.com/angelmondragon/residency-backend/internal/repo"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveIndex is the partial unique index allowing one pending or accepted
// agreement per tenant and apartment.
const ActiveIndex = "agreements_active_tenant_apartment_idx"

var activeStatuses = []enums.AgreementStatus{enums.AgreementStatusPending, enums.AgreementStatusAccepted}

// Repository defines persistence operations for agreement requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, agreement *models.Agreement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error)
	FindActive(ctx context.Context, tenantEmail string, apartmentID uuid.UUID) (*models.Agreement, error)
	FindLatestAccepted(ctx context.Context, tenantEmail string) (*models.Agreement, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.AgreementStatus, decidedBy string, decidedAt time.Time) (int64, error)
	List(ctx context.Context, status *enums.AgreementStatus) ([]models.Agreement, error)
	ListForTenant(ctx context.Context, tenantEmail string) ([]models.Agreement, error)
	CountByStatus(ctx context.Context) (map[enums.AgreementStatus]int64, error)
}

type repository struct {
	internalrepo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: internalrepo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *repository) Create(ctx context.Context, agreement *models.Agreement) error {
	if agreement.ID == uuid.Nil {
		agreement.ID = uuid.New()
	}
	agreement.TenantEmail = normalizeEmail(agreement.TenantEmail)
	return r.DB(ctx).Create(agreement).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := r.DB(ctx).First(&agreement, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

func (r *repository) FindActive(ctx context.Context, tenantEmail string, apartmentID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := r.DB(ctx).
		Where("tenant_email = ? AND apartment_id = ? AND status IN ?", normalizeEmail(tenantEmail), apartmentID, activeStatuses).
		First(&agreement).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// FindLatestAccepted returns the tenant's most recently decided accepted agreement.
func (r *repository) FindLatestAccepted(ctx context.Context, tenantEmail string) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := r.DB(ctx).
		Where("tenant_email = ? AND status = ?", normalizeEmail(tenantEmail), enums.AgreementStatusAccepted).
		Order("decided_at DESC").
		Order("request_date DESC").
		First(&agreement).Error; err != nil {
		return nil, err
	}
	return &agreement, nil
}

// TransitionStatus updates the status only when the stored status still equals
// from, so concurrent decisions cannot both succeed.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.AgreementStatus, decidedBy string, decidedAt time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Agreement{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"decided_by": decidedBy,
			"decided_at": decidedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, status *enums.AgreementStatus) ([]models.Agreement, error) {
	var out []models.Agreement
	query := r.DB(ctx).Order("request_date ASC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListForTenant(ctx context.Context, tenantEmail string) ([]models.Agreement, error) {
	var out []models.Agreement
	if err := r.DB(ctx).
		Where("tenant_email = ?", normalizeEmail(tenantEmail)).
		Order("request_date DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.AgreementStatus]int64, error) {
	var rows []struct {
		Status enums.AgreementStatus
		Count  int64
	}
	if err := r.DB(ctx).
		Model(&models.Agreement{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.AgreementStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
