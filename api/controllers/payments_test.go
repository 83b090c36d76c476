package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/internal/payments"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/identity"
)

type stubPaymentsService struct {
	session    *payments.Session
	applyCalls int
	confirmErr error
	month      string
}

func newStubPayments() *stubPaymentsService {
	base := decimal.RequireFromString("1200")
	return &stubPaymentsService{session: &payments.Session{
		ID:          "sess-1",
		TenantEmail: "member@example.com",
		Month:       "2026-03",
		Lease:       payments.Lease{Rent: base},
		Coupon:      coupons.NewSession(base),
	}}
}

func (s *stubPaymentsService) StartSession(_ context.Context, _ identity.Identity, month string) (*payments.Session, error) {
	s.month = month
	return s.session, nil
}

func (s *stubPaymentsService) GetSession(_ context.Context, _ identity.Identity, id string) (*payments.Session, error) {
	if id != s.session.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
	}
	return s.session, nil
}

func (s *stubPaymentsService) ApplyCoupon(_ context.Context, _ identity.Identity, _ string, code string) (*payments.Session, coupons.Result, error) {
	s.applyCalls++
	if code != "SAVE10" {
		return nil, coupons.Result{}, pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon is not available")
	}
	discounted := decimal.RequireFromString("1080")
	s.session.Coupon.Discounted = discounted
	return s.session, coupons.Result{Code: code, Discount: 10, Base: s.session.Lease.Rent, Discounted: discounted, AlreadyApplied: s.applyCalls > 1}, nil
}

func (s *stubPaymentsService) CreateIntent(context.Context, identity.Identity, string) (*payments.Intent, error) {
	return &payments.Intent{ID: "pi_1", ClientSecret: "secret", Amount: s.session.Amount(), AmountMinor: s.session.Amount().Mul(decimal.NewFromInt(100)).IntPart(), Currency: "usd", RequiresPayment: true}, nil
}

func (s *stubPaymentsService) Confirm(_ context.Context, _ identity.Identity, _ string, intentID string) (*models.Payment, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return &models.Payment{TenantEmail: "member@example.com", TransactionID: intentID, Rent: s.session.Amount(), Month: s.session.Month}, nil
}

func (s *stubPaymentsService) RecordFromIntent(context.Context, *stripe.PaymentIntent) (*models.Payment, error) {
	return nil, nil
}

func (s *stubPaymentsService) ListForTenant(_ context.Context, _ string, month string) ([]models.Payment, error) {
	s.month = month
	return []models.Payment{{TransactionID: "pi_1", Month: "2026-03"}}, nil
}

func memberOpts(params map[string]string) requestOpts {
	return requestOpts{email: "member@example.com", params: params}
}

func TestPaymentSessionStart(t *testing.T) {
	svc := newStubPayments()
	rec := serve(PaymentSessionStart(svc, nil), newRequest(http.MethodPost, "/api/v1/payments/sessions", `{"month":"2026-03"}`, memberOpts(nil)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	var dto payments.SessionDTO
	decodeData(t, rec, &dto)
	if dto.ID != "sess-1" || !dto.AmountDue.Equal(decimal.RequireFromString("1200")) {
		t.Fatalf("unexpected session %+v", dto)
	}
	if svc.month != "2026-03" {
		t.Fatalf("expected month passed through, got %q", svc.month)
	}
}

func TestPaymentApplyCouponTwiceDoesNotCompound(t *testing.T) {
	svc := newStubPayments()
	params := map[string]string{"sessionId": "sess-1"}

	var first, second payments.CouponOutcome
	rec := serve(PaymentApplyCoupon(svc, nil), newRequest(http.MethodPost, "/", `{"code":"SAVE10"}`, memberOpts(params)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	decodeData(t, rec, &first)

	rec = serve(PaymentApplyCoupon(svc, nil), newRequest(http.MethodPost, "/", `{"code":"SAVE10"}`, memberOpts(params)))
	decodeData(t, rec, &second)
	if !second.Result.AlreadyApplied || !second.Session.AmountDue.Equal(first.Session.AmountDue) {
		t.Fatalf("expected unchanged amount on second apply, got %+v", second)
	}
}

func TestPaymentApplyCouponInvalid(t *testing.T) {
	svc := newStubPayments()
	rec := serve(PaymentApplyCoupon(svc, nil), newRequest(http.MethodPost, "/", `{"code":"BOGUS"}`, memberOpts(map[string]string{"sessionId": "sess-1"})))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeCouponInvalid) {
		t.Fatalf("expected coupon invalid got %s", code)
	}
}

func TestPaymentConfirmDeclinePassesMessage(t *testing.T) {
	svc := newStubPayments()
	svc.confirmErr = pkgerrors.New(pkgerrors.CodePaymentDeclined, "Your card has insufficient funds.")
	rec := serve(PaymentConfirm(svc, nil), newRequest(http.MethodPost, "/", `{"payment_intent_id":"pi_1"}`, memberOpts(map[string]string{"sessionId": "sess-1"})))
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", rec.Code)
	}
	if !containsBody(rec.Body.String(), "Your card has insufficient funds.") {
		t.Fatalf("expected processor message verbatim, got %s", rec.Body.String())
	}
}

func TestPaymentConfirmRecordsPayment(t *testing.T) {
	svc := newStubPayments()
	rec := serve(PaymentConfirm(svc, nil), newRequest(http.MethodPost, "/", `{"payment_intent_id":"pi_9"}`, memberOpts(map[string]string{"sessionId": "sess-1"})))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	var dto payments.PaymentDTO
	decodeData(t, rec, &dto)
	if dto.TransactionID != "pi_9" {
		t.Fatalf("unexpected payment %+v", dto)
	}
}

func TestPaymentHistoryMonthFilter(t *testing.T) {
	svc := newStubPayments()
	rec := serve(PaymentHistory(svc, nil), newRequest(http.MethodGet, "/api/v1/payments/me?month=2026-03", "", memberOpts(nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.month != "2026-03" {
		t.Fatalf("expected month filter, got %q", svc.month)
	}
}
