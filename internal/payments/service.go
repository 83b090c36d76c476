package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/pkg/db"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/angelmondragon/residency-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/residency-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
)

const (
	monthLayout = "2006-01"
	// waivedPrefix marks the transaction id of a fully discounted payment
	// that never reached Stripe.
	waivedPrefix = "waived_"
)

var minorUnit = decimal.NewFromInt(100)

type leaseSource interface {
	ActiveLease(ctx context.Context, tenantEmail string) (*models.Agreement, error)
}

type couponApplier interface {
	Apply(ctx context.Context, code string, base decimal.Decimal) (coupons.Result, error)
}

type sessionStore interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type paymentsRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	ListForTenant(ctx context.Context, tenantEmail, month string) ([]models.Payment, error)
}

// Intent is what the client needs to confirm a card payment with Stripe.
// When RequiresPayment is false there is no card step and the client confirms
// with ID directly.
type Intent struct {
	ID              string          `json:"id"`
	ClientSecret    string          `json:"client_secret,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	AmountMinor     int64           `json:"amount_minor"`
	Currency        string          `json:"currency"`
	RequiresPayment bool            `json:"requires_payment"`
}

// Service runs the rent payment flow: session, coupon, intent, confirm.
type Service interface {
	StartSession(ctx context.Context, tenant identity.Identity, month string) (*Session, error)
	GetSession(ctx context.Context, tenant identity.Identity, sessionID string) (*Session, error)
	ApplyCoupon(ctx context.Context, tenant identity.Identity, sessionID, code string) (*Session, coupons.Result, error)
	CreateIntent(ctx context.Context, tenant identity.Identity, sessionID string) (*Intent, error)
	Confirm(ctx context.Context, tenant identity.Identity, sessionID, paymentIntentID string) (*models.Payment, error)
	RecordFromIntent(ctx context.Context, pi *stripe.PaymentIntent) (*models.Payment, error)
	ListForTenant(ctx context.Context, tenantEmail, month string) ([]models.Payment, error)
}

type ServiceParams struct {
	Leases   leaseSource
	Coupons  couponApplier
	Sessions sessionStore
	Repo     paymentsRepository
	Intents  pkgstripe.PaymentIntents
	Currency string
	Metrics  *metrics.WorkflowMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	leases   leaseSource
	coupons  couponApplier
	sessions sessionStore
	repo     paymentsRepository
	intents  pkgstripe.PaymentIntents
	currency string
	metrics  *metrics.WorkflowMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Leases == nil:
		return nil, fmt.Errorf("lease source required")
	case p.Coupons == nil:
		return nil, fmt.Errorf("coupon evaluator required")
	case p.Sessions == nil:
		return nil, fmt.Errorf("session store required")
	case p.Repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case p.Intents == nil:
		return nil, fmt.Errorf("stripe payment intents required")
	}
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		leases:   p.Leases,
		coupons:  p.Coupons,
		sessions: p.Sessions,
		repo:     p.Repo,
		intents:  p.Intents,
		currency: currency,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      now,
	}, nil
}

// StartSession opens a payment flow for month priced from the tenant's
// accepted agreement.
func (s *service) StartSession(ctx context.Context, tenant identity.Identity, month string) (*Session, error) {
	email := normalizeEmail(tenant.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity email missing")
	}
	month, err := normalizeMonth(month)
	if err != nil {
		return nil, err
	}

	agreement, err := s.leases.ActiveLease(ctx, email)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:          uuid.NewString(),
		TenantEmail: email,
		Month:       month,
		Lease: Lease{
			AgreementID:  agreement.ID,
			ApartmentID:  agreement.ApartmentID,
			BuildingName: agreement.BuildingName,
			ApartmentNo:  agreement.ApartmentNo,
			FloorNo:      agreement.FloorNo,
			BlockName:    agreement.BlockName,
			Rent:         agreement.Rent,
		},
		Coupon:    coupons.NewSession(agreement.Rent),
		CreatedAt: s.now().UTC(),
	}
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) GetSession(ctx context.Context, tenant identity.Identity, sessionID string) (*Session, error) {
	return s.loadOwned(ctx, tenant, sessionID)
}

// ApplyCoupon discounts the session at most once. Coupons lock once an intent
// exists.
func (s *service) ApplyCoupon(ctx context.Context, tenant identity.Identity, sessionID, code string) (*Session, coupons.Result, error) {
	session, err := s.loadOwned(ctx, tenant, sessionID)
	if err != nil {
		return nil, coupons.Result{}, err
	}

	if session.IntentID != "" && !session.Coupon.Applied() {
		return nil, coupons.Result{}, pkgerrors.New(pkgerrors.CodeStateConflict, "coupons must be applied before payment starts")
	}

	res, err := session.Coupon.Apply(ctx, s.coupons, code)
	if err != nil {
		return session, res, err
	}
	if res.AlreadyApplied {
		s.metrics.IncCoupon(metrics.OutcomeAlreadyApplied)
		return session, res, nil
	}

	if err := s.saveSession(ctx, session); err != nil {
		return nil, coupons.Result{}, err
	}
	return session, res, nil
}

// CreateIntent asks Stripe for a PaymentIntent of round(amount*100) minor
// units. Repeated calls for an unchanged session reuse the same intent. A
// session discounted to zero gets a waived intent instead.
func (s *service) CreateIntent(ctx context.Context, tenant identity.Identity, sessionID string) (*Intent, error) {
	session, err := s.loadOwned(ctx, tenant, sessionID)
	if err != nil {
		return nil, err
	}

	amount := session.Amount()
	minor := MinorUnits(amount)
	if minor < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount cannot be negative")
	}
	if minor == 0 {
		session.IntentID = waivedPrefix + session.ID
		if err := s.saveSession(ctx, session); err != nil {
			return nil, err
		}
		return &Intent{ID: session.IntentID, Amount: amount, Currency: s.currency}, nil
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:       stripe.Int64(minor),
		Currency:     stripe.String(s.currency),
		Description:  stripe.String(fmt.Sprintf("Rent %s for %s %s-%s", session.Month, session.Lease.BuildingName, session.Lease.BlockName, session.Lease.ApartmentNo)),
		ReceiptEmail: stripe.String(session.TenantEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadataFromSession(session).toMap() {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(fmt.Sprintf("rent-%s-%d", session.ID, minor))

	pi, err := s.intents.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, pkgstripe.ErrorMessage(err))
	}

	session.IntentID = pi.ID
	if err := s.saveSession(ctx, session); err != nil {
		return nil, err
	}

	return &Intent{
		ID:              pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          amount,
		AmountMinor:     minor,
		Currency:        s.currency,
		RequiresPayment: true,
	}, nil
}

// Confirm verifies the intent with Stripe and records the payment. The stored
// rent is the discounted amount Stripe actually captured.
func (s *service) Confirm(ctx context.Context, tenant identity.Identity, sessionID, paymentIntentID string) (*models.Payment, error) {
	session, err := s.loadOwned(ctx, tenant, sessionID)
	if err != nil {
		return nil, err
	}
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent_id is required")
	}
	if session.IntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no payment intent was created for this session")
	}
	if session.IntentID != paymentIntentID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent does not belong to this session")
	}
	if strings.HasPrefix(session.IntentID, waivedPrefix) {
		return s.recordWaived(ctx, session)
	}

	pi, err := s.intents.Get(ctx, paymentIntentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, pkgstripe.ErrorMessage(err))
	}

	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithFields(ctx, map[string]any{
			"session_id":        session.ID,
			"payment_intent_id": pi.ID,
			"tenant_email":      session.TenantEmail,
		})
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		s.metrics.IncPayment(metrics.OutcomeDeclined)
		msg := pkgstripe.DeclineMessage(pi)
		if msg == "" {
			msg = fmt.Sprintf("payment was not completed (status %s)", pi.Status)
		}
		if s.logg != nil {
			s.logg.Warn(logCtx, "payment.declined: "+msg)
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, msg).
			WithDetails(map[string]any{"status": string(pi.Status)})
	}

	if expected := MinorUnits(session.Amount()); pi.Amount != expected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "captured amount does not match the payment session").
			WithDetails(map[string]any{"expected_minor": expected, "captured_minor": pi.Amount})
	}

	payment := buildPayment(metadataFromSession(session), pi.ID, s.now().UTC())
	stored, _, err := s.persist(ctx, payment)
	if err != nil {
		s.metrics.IncPersistAfterCapture()
		if s.logg != nil {
			s.logg.Error(logCtx, "payment.persist_after_capture_failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "payment captured but could not be recorded").
			WithDetails(map[string]any{"transaction_id": pi.ID})
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil && s.logg != nil {
		s.logg.Warn(logCtx, fmt.Sprintf("payment session cleanup failed: %v", err))
	}
	s.metrics.IncPayment(metrics.OutcomeSucceeded)
	if s.logg != nil {
		s.logg.Info(logCtx, "payment.recorded")
	}
	return stored, nil
}

// recordWaived stores a fully discounted payment. Nothing was captured, so the
// session amount must still be zero.
func (s *service) recordWaived(ctx context.Context, session *Session) (*models.Payment, error) {
	if MinorUnits(session.Amount()) != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment session no longer qualifies for a waived payment")
	}
	stored, _, err := s.persist(ctx, buildPayment(metadataFromSession(session), session.IntentID, s.now().UTC()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record waived payment")
	}

	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithFields(ctx, map[string]any{
			"session_id":     session.ID,
			"transaction_id": session.IntentID,
			"tenant_email":   session.TenantEmail,
		})
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil && s.logg != nil {
		s.logg.Warn(logCtx, fmt.Sprintf("payment session cleanup failed: %v", err))
	}
	s.metrics.IncPayment(metrics.OutcomeWaived)
	if s.logg != nil {
		s.logg.Info(logCtx, "payment.waived")
	}
	return stored, nil
}

// RecordFromIntent persists a succeeded intent from its metadata. It is the
// recovery path for captures whose confirm call failed or never arrived, and
// is a no-op when the record already exists.
func (s *service) RecordFromIntent(ctx context.Context, pi *stripe.PaymentIntent) (*models.Payment, error) {
	if pi == nil || pi.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent required")
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent has not succeeded")
	}
	meta, err := parseIntentMetadata(pi.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment intent metadata invalid")
	}
	if MinorUnits(meta.Rent) != pi.Amount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "captured amount does not match intent metadata")
	}

	stored, created, err := s.persist(ctx, buildPayment(meta, pi.ID, s.now().UTC()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record payment from webhook")
	}
	if created {
		s.metrics.IncPayment(metrics.OutcomeRecovered)
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"payment_intent_id": pi.ID,
				"tenant_email":      meta.TenantEmail,
			})
			s.logg.Info(logCtx, "payment.recovered_from_webhook")
		}
	}
	return stored, nil
}

func (s *service) ListForTenant(ctx context.Context, tenantEmail, month string) ([]models.Payment, error) {
	if strings.TrimSpace(month) != "" {
		normalized, err := normalizeMonth(month)
		if err != nil {
			return nil, err
		}
		month = normalized
	}
	list, err := s.repo.ListForTenant(ctx, tenantEmail, month)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return list, nil
}

// persist inserts payment, returning the existing record when the
// transaction id was already recorded.
func (s *service) persist(ctx context.Context, payment *models.Payment) (*models.Payment, bool, error) {
	err := s.repo.Create(ctx, payment)
	if err == nil {
		return payment, true, nil
	}
	if !db.IsUniqueViolation(err, TransactionConstraint) {
		return nil, false, err
	}
	existing, findErr := s.repo.FindByTransactionID(ctx, payment.TransactionID)
	if findErr != nil {
		return nil, false, findErr
	}
	return existing, false, nil
}

func (s *service) loadOwned(ctx context.Context, tenant identity.Identity, sessionID string) (*Session, error) {
	email := normalizeEmail(tenant.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity email missing")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found or expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
	}
	if session.TenantEmail != email {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found or expired")
	}
	return session, nil
}

func (s *service) saveSession(ctx context.Context, session *Session) error {
	err := s.sessions.Save(ctx, session)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionConflict):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment session changed; reload it and retry")
	case errors.Is(err, ErrSessionNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found or expired")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment session")
	}
}

func buildPayment(meta intentMetadata, transactionID string, paidAt time.Time) *models.Payment {
	var code *string
	if meta.CouponCode != "" {
		c := meta.CouponCode
		code = &c
	}
	return &models.Payment{
		TenantEmail:   meta.TenantEmail,
		AgreementID:   meta.Lease.AgreementID,
		ApartmentID:   meta.Lease.ApartmentID,
		BuildingName:  meta.Lease.BuildingName,
		ApartmentNo:   meta.Lease.ApartmentNo,
		FloorNo:       meta.Lease.FloorNo,
		BlockName:     meta.Lease.BlockName,
		Rent:          meta.Rent,
		OriginalRent:  meta.OriginalRent,
		CouponCode:    code,
		Month:         meta.Month,
		TransactionID: transactionID,
		PaymentDate:   paidAt,
		Status:        enums.PaymentStatusSucceeded,
	}
}

// MinorUnits converts an amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnit).Round(0).IntPart()
}

func normalizeMonth(month string) (string, error) {
	month = strings.TrimSpace(month)
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "month must use the YYYY-MM format")
	}
	return t.Format(monthLayout), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
