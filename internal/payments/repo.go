package payments

import (
	"context"
	"strings"

	"github.com/angelmondragon/residency-backend/internal/repo"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionConstraint is the unique constraint on processor transaction ids.
const TransactionConstraint = "payments_transaction_id_key"

// Repository stores payment records. Records are insert-only.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.TenantEmail = strings.ToLower(strings.TrimSpace(payment.TenantEmail))
	return r.DB(ctx).Create(payment).Error
}

func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListForTenant returns the tenant's payments newest first, optionally for one month.
func (r *Repository) ListForTenant(ctx context.Context, tenantEmail, month string) ([]models.Payment, error) {
	var out []models.Payment
	query := r.DB(ctx).
		Where("tenant_email = ?", strings.ToLower(strings.TrimSpace(tenantEmail))).
		Order("payment_date DESC")
	if month != "" {
		query = query.Where("month = ?", month)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
