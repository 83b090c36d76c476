package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/pkg/db/dbtest"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/metrics"
	redisclient "github.com/angelmondragon/residency-backend/pkg/redis"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

type memoryKV struct {
	values map[string]string
	// beforeSwap runs once ahead of the next compare-and-set, standing in for
	// a concurrent writer.
	beforeSwap func()
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redisclient.ErrNil
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryKV) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryKV) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	if hook := m.beforeSwap; hook != nil {
		m.beforeSwap = nil
		hook()
	}
	current, ok := m.values[key]
	if !ok {
		return false, redisclient.ErrNil
	}
	if current != expected {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *memoryKV) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryKV) PaymentSessionKey(id string) string {
	return "rs:payment_session:" + id
}

type stubLeases struct {
	agreement *models.Agreement
}

func (s *stubLeases) ActiveLease(ctx context.Context, email string) (*models.Agreement, error) {
	if s.agreement == nil || s.agreement.TenantEmail != email {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no accepted agreement for tenant")
	}
	return s.agreement, nil
}

type stubCouponLookup map[string]*models.Coupon

func (s stubCouponLookup) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if c, ok := s[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubIntents struct {
	created    []*stripe.PaymentIntentCreateParams
	retrieved  *stripe.PaymentIntent
	createErr  error
	getErr     error
	nextIntent string
}

func (s *stubIntents) Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, params)
	id := s.nextIntent
	if id == "" {
		id = "pi_test_1"
	}
	return &stripe.PaymentIntent{
		ID:           id,
		Amount:       *params.Amount,
		ClientSecret: id + "_secret",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		Metadata:     params.Metadata,
	}, nil
}

func (s *stubIntents) Get(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.retrieved, nil
}

type failingRepo struct {
	paymentsRepository
}

func (failingRepo) Create(ctx context.Context, payment *models.Payment) error {
	return errors.New("connection refused")
}

type paymentFixture struct {
	svc      Service
	repo     *Repository
	kv       *memoryKV
	intents  *stubIntents
	registry *prometheus.Registry
	tenant   identity.Identity
}

func newPaymentFixture(t *testing.T, repoOverride paymentsRepository) *paymentFixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewWorkflowMetrics(reg)

	evaluator, err := coupons.NewEvaluator(stubCouponLookup{
		"SUMMER25":  {Code: "SUMMER25", Discount: 25, Available: true},
		"EXPIRED10": {Code: "EXPIRED10", Discount: 10, Available: false},
		"FREEMONTH": {Code: "FREEMONTH", Discount: 100, Available: true},
	}, m)
	require.NoError(t, err)

	kv := newMemoryKV()
	store, err := newSessionStore(kv, kv, time.Hour)
	require.NoError(t, err)

	repo := NewRepository(dbtest.Open(t))
	var paymentsRepo paymentsRepository = repo
	if repoOverride != nil {
		paymentsRepo = repoOverride
	}

	intents := &stubIntents{}
	svc, err := NewService(ServiceParams{
		Leases: &stubLeases{agreement: &models.Agreement{
			ID:           uuid.New(),
			ApartmentID:  uuid.New(),
			TenantEmail:  "tenant@example.com",
			BuildingName: "Maple",
			ApartmentNo:  "4B",
			FloorNo:      4,
			BlockName:    "North",
			Rent:         decimal.NewFromInt(20000),
			Status:       enums.AgreementStatusAccepted,
		}},
		Coupons:  evaluator,
		Sessions: store,
		Repo:     paymentsRepo,
		Intents:  intents,
		Metrics:  m,
		Now:      func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	return &paymentFixture{
		svc:      svc,
		repo:     repo,
		kv:       kv,
		intents:  intents,
		registry: reg,
		tenant:   identity.Identity{Email: "tenant@example.com"},
	}
}

func (f *paymentFixture) succeed(intent *Intent) {
	f.intents.retrieved = &stripe.PaymentIntent{
		ID:       intent.ID,
		Amount:   intent.AmountMinor,
		Status:   stripe.PaymentIntentStatusSucceeded,
		Metadata: f.intents.created[len(f.intents.created)-1].Metadata,
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if outcome == "" {
				return metric.GetCounter().GetValue()
			}
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func TestPaymentFlowRecordsDiscountedRent(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	assert.True(t, session.Amount().Equal(decimal.NewFromInt(20000)))

	_, res, err := f.svc.ApplyCoupon(ctx, f.tenant, session.ID, "summer25")
	require.NoError(t, err)
	assert.True(t, res.Discounted.Equal(decimal.RequireFromString("15000.00")))

	again, res, err := f.svc.ApplyCoupon(ctx, f.tenant, session.ID, "SUMMER25")
	require.NoError(t, err)
	assert.True(t, res.AlreadyApplied)
	assert.True(t, again.Amount().Equal(decimal.RequireFromString("15000.00")), "discount must not compound")

	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), intent.AmountMinor)
	assert.Equal(t, "usd", intent.Currency)
	require.Len(t, f.intents.created, 1)
	params := f.intents.created[0]
	assert.Equal(t, "SUMMER25", params.Metadata[metaCouponCode])
	assert.Equal(t, "15000.00", params.Metadata[metaRent])
	assert.Equal(t, "20000.00", params.Metadata[metaOriginalRent])
	require.NotNil(t, params.IdempotencyKey)

	f.succeed(intent)
	payment, err := f.svc.Confirm(ctx, f.tenant, session.ID, intent.ID)
	require.NoError(t, err)
	assert.True(t, payment.Rent.Equal(decimal.NewFromInt(15000)))
	assert.True(t, payment.OriginalRent.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, intent.ID, payment.TransactionID)
	assert.Equal(t, "2026-03", payment.Month)
	require.NotNil(t, payment.CouponCode)
	assert.Equal(t, "SUMMER25", *payment.CouponCode)

	stored, err := f.repo.FindByTransactionID(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, stored.Rent.Equal(decimal.NewFromInt(15000)))

	_, err = f.svc.GetSession(ctx, f.tenant, session.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err), "session is cleared after confirmation")
	assert.Equal(t, float64(1), counterValue(t, f.registry, "payments_total", metrics.OutcomeSucceeded))
	assert.Equal(t, float64(1), counterValue(t, f.registry, "coupon_applications_total", metrics.OutcomeAlreadyApplied))

	history, err := f.svc.ListForTenant(ctx, "tenant@example.com", "2026-03")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	history, err = f.svc.ListForTenant(ctx, "tenant@example.com", "2026-04")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestApplyInvalidCouponLeavesSessionAmount(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)

	_, res, err := f.svc.ApplyCoupon(ctx, f.tenant, session.ID, "EXPIRED10")
	assert.Equal(t, pkgerrors.CodeCouponInvalid, codeOf(err))
	assert.True(t, res.Discounted.Equal(decimal.NewFromInt(20000)))

	reloaded, err := f.svc.GetSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Coupon.Applied())
	assert.True(t, reloaded.Amount().Equal(decimal.NewFromInt(20000)))
}

func TestConfirmDeclinedSurfacesProcessorMessage(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)

	f.intents.retrieved = &stripe.PaymentIntent{
		ID:               intent.ID,
		Amount:           intent.AmountMinor,
		Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
		LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
	}
	_, err = f.svc.Confirm(ctx, f.tenant, session.ID, intent.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePaymentDeclined, codeOf(err))
	assert.Equal(t, "Your card was declined.", pkgerrors.As(err).Message())

	history, err := f.svc.ListForTenant(ctx, "tenant@example.com", "")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, float64(1), counterValue(t, f.registry, "payments_total", metrics.OutcomeDeclined))
}

func TestConfirmRejectsAmountMismatchAndForeignIntent(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, f.tenant, session.ID, "pi_other")
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	f.intents.retrieved = &stripe.PaymentIntent{ID: intent.ID, Amount: 100, Status: stripe.PaymentIntentStatusSucceeded}
	_, err = f.svc.Confirm(ctx, f.tenant, session.ID, intent.ID)
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))
}

func TestConfirmPersistFailureIsDistinctFromDecline(t *testing.T) {
	f := newPaymentFixture(t, failingRepo{})
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	f.succeed(intent)

	_, err = f.svc.Confirm(ctx, f.tenant, session.ID, intent.ID)
	assert.Equal(t, pkgerrors.CodePersistence, codeOf(err))
	assert.Equal(t, float64(1), counterValue(t, f.registry, "payment_persist_after_capture_failures_total", ""))
	assert.Equal(t, float64(0), counterValue(t, f.registry, "payments_total", metrics.OutcomeDeclined))

	_, err = f.svc.GetSession(ctx, f.tenant, session.ID)
	assert.NoError(t, err, "session survives so the confirm can be retried")
}

func TestRecordFromIntentIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	f.succeed(intent)

	recovered, err := f.svc.RecordFromIntent(ctx, f.intents.retrieved)
	require.NoError(t, err)
	assert.True(t, recovered.Rent.Equal(decimal.NewFromInt(20000)))
	assert.Nil(t, recovered.CouponCode)

	again, err := f.svc.RecordFromIntent(ctx, f.intents.retrieved)
	require.NoError(t, err)
	assert.Equal(t, recovered.ID, again.ID)

	confirmed, err := f.svc.Confirm(ctx, f.tenant, session.ID, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, recovered.ID, confirmed.ID)
	assert.Equal(t, float64(1), counterValue(t, f.registry, "payments_total", metrics.OutcomeRecovered))
}

func TestRecordFromIntentRejectsIncompleteMetadata(t *testing.T) {
	f := newPaymentFixture(t, nil)
	_, err := f.svc.RecordFromIntent(context.Background(), &stripe.PaymentIntent{
		ID:       "pi_orphan",
		Amount:   100,
		Status:   stripe.PaymentIntentStatusSucceeded,
		Metadata: map[string]string{metaTenantEmail: "tenant@example.com"},
	})
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))
}

func TestRecordFromIntentRejectsAmountMismatch(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	f.succeed(intent)
	f.intents.retrieved.Amount = intent.AmountMinor - 100

	assert.True(t, IsRentIntent(f.intents.retrieved))
	_, err = f.svc.RecordFromIntent(ctx, f.intents.retrieved)
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	_, err = f.repo.FindByTransactionID(ctx, intent.ID)
	assert.Error(t, err)
}

func TestIsRentIntent(t *testing.T) {
	assert.False(t, IsRentIntent(nil))
	assert.False(t, IsRentIntent(&stripe.PaymentIntent{ID: "pi_x"}))
	assert.False(t, IsRentIntent(&stripe.PaymentIntent{Metadata: map[string]string{metaSessionID: "  "}}))
	assert.True(t, IsRentIntent(&stripe.PaymentIntent{Metadata: map[string]string{metaSessionID: "s1"}}))
}

func TestCouponLockedOnceIntentExists(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	_, err = f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)

	_, _, err = f.svc.ApplyCoupon(ctx, f.tenant, session.ID, "SUMMER25")
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))
}

func TestCreateIntentLosesToConcurrentCoupon(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)

	f.kv.beforeSwap = func() {
		_, _, applyErr := f.svc.ApplyCoupon(ctx, f.tenant, session.ID, "SUMMER25")
		require.NoError(t, applyErr)
	}
	_, err = f.svc.CreateIntent(ctx, f.tenant, session.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))

	current, err := f.svc.GetSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.True(t, current.Coupon.Applied(), "coupon write must survive")
	assert.Empty(t, current.IntentID)

	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), intent.AmountMinor)
}

func TestApplyCouponLosesToConcurrentIntent(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)

	var intent *Intent
	f.kv.beforeSwap = func() {
		var intentErr error
		intent, intentErr = f.svc.CreateIntent(ctx, f.tenant, session.ID)
		require.NoError(t, intentErr)
	}
	_, _, err = f.svc.ApplyCoupon(ctx, f.tenant, session.ID, "SUMMER25")
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))

	current, err := f.svc.GetSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.False(t, current.Coupon.Applied())
	assert.Equal(t, intent.ID, current.IntentID)
	assert.True(t, current.Amount().Equal(decimal.NewFromInt(20000)))
}

func TestSessionStoreRejectsStaleWrite(t *testing.T) {
	kv := newMemoryKV()
	store, err := newSessionStore(kv, kv, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "s1", TenantEmail: "tenant@example.com"}))
	first, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	second, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	first.IntentID = "pi_1"
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Month = "2026-04"
	assert.ErrorIs(t, store.Save(ctx, second), ErrSessionConflict)
	assert.Equal(t, int64(1), second.Version)

	require.NoError(t, store.Delete(ctx, "s1"))
	first.Month = "2026-05"
	assert.ErrorIs(t, store.Save(ctx, first), ErrSessionNotFound)
}

func TestFullDiscountRecordsWaivedPaymentWithoutStripe(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)
	_, res, err := f.svc.ApplyCoupon(ctx, f.tenant, session.ID, "FREEMONTH")
	require.NoError(t, err)
	assert.True(t, res.Discounted.IsZero())

	intent, err := f.svc.CreateIntent(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.False(t, intent.RequiresPayment)
	assert.Empty(t, intent.ClientSecret)
	assert.Equal(t, int64(0), intent.AmountMinor)
	assert.Equal(t, "waived_"+session.ID, intent.ID)
	assert.Empty(t, f.intents.created, "no Stripe intent for a zero amount")

	payment, err := f.svc.Confirm(ctx, f.tenant, session.ID, intent.ID)
	require.NoError(t, err)
	assert.True(t, payment.Rent.IsZero())
	assert.True(t, payment.OriginalRent.Equal(decimal.NewFromInt(20000)))
	require.NotNil(t, payment.CouponCode)
	assert.Equal(t, "FREEMONTH", *payment.CouponCode)
	assert.Equal(t, intent.ID, payment.TransactionID)

	stored, err := f.repo.FindByTransactionID(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, stored.Rent.IsZero())
	assert.Equal(t, 1.0, counterValue(t, f.registry, "payments_total", metrics.OutcomeWaived))

	_, err = f.svc.GetSession(ctx, f.tenant, session.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err))
}

func TestSessionsAreScopedToTenant(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.tenant, "2026-03")
	require.NoError(t, err)

	_, err = f.svc.GetSession(ctx, identity.Identity{Email: "other@example.com"}, session.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err))

	_, err = f.svc.StartSession(ctx, identity.Identity{Email: "other@example.com"}, "2026-03")
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))
}

func TestStartSessionValidatesMonth(t *testing.T) {
	f := newPaymentFixture(t, nil)
	for _, month := range []string{"", "March", "2026-13", "2026/03"} {
		_, err := f.svc.StartSession(context.Background(), f.tenant, month)
		assert.Equal(t, pkgerrors.CodeValidation, codeOf(err), "month %q", month)
	}
}

func TestMinorUnitsRounds(t *testing.T) {
	assert.Equal(t, int64(1500000), MinorUnits(decimal.RequireFromString("15000.00")))
	assert.Equal(t, int64(84999), MinorUnits(decimal.RequireFromString("849.99")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}
