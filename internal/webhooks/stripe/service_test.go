package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/stripe/stripe-go/v84"
)

type stubRecorder struct {
	calls []*stripe.PaymentIntent
	err   error
}

func (s *stubRecorder) RecordFromIntent(ctx context.Context, pi *stripe.PaymentIntent) (*models.Payment, error) {
	s.calls = append(s.calls, pi)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payment{TransactionID: pi.ID}, nil
}

func intentEvent(t *testing.T, eventType stripe.EventType, pi *stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(pi)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestService_SucceededIntentIsRecorded(t *testing.T) {
	recorder := &stubRecorder{}
	svc, err := NewService(ServiceParams{Payments: recorder})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	pi := &stripe.PaymentIntent{ID: "pi_1", Amount: 1500000, Status: stripe.PaymentIntentStatusSucceeded, Metadata: map[string]string{"session_id": "s1", "month": "2026-03"}}
	if err := svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentSucceeded, pi)); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(recorder.calls) != 1 || recorder.calls[0].ID != "pi_1" || recorder.calls[0].Metadata["month"] != "2026-03" {
		t.Fatalf("expected intent forwarded, got %+v", recorder.calls)
	}
}

func TestService_ForeignIntentIsAcknowledged(t *testing.T) {
	recorder := &stubRecorder{}
	svc, _ := NewService(ServiceParams{Payments: recorder})

	pi := &stripe.PaymentIntent{ID: "pi_foreign", Status: stripe.PaymentIntentStatusSucceeded, Metadata: map[string]string{"order": "42"}}
	if err := svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentSucceeded, pi)); err != nil {
		t.Fatalf("expected foreign intent to be acknowledged, got %v", err)
	}
	if len(recorder.calls) != 0 {
		t.Fatalf("foreign intent must not reach the recorder, got %d calls", len(recorder.calls))
	}
}

func TestService_RentIntentValidationErrorIsReturned(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"amount mismatch", pkgerrors.New(pkgerrors.CodeValidation, "captured amount does not match intent metadata")},
		{"corrupt metadata", pkgerrors.New(pkgerrors.CodeValidation, "payment intent metadata invalid")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &stubRecorder{err: tt.err}
			svc, _ := NewService(ServiceParams{Payments: recorder})

			pi := &stripe.PaymentIntent{ID: "pi_rent", Amount: 1, Status: stripe.PaymentIntentStatusSucceeded, Metadata: map[string]string{"session_id": "s1"}}
			err := svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentSucceeded, pi))
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error surfaced, got %v", err)
			}
			if len(recorder.calls) != 1 {
				t.Fatalf("expected recorder to be called once, got %d", len(recorder.calls))
			}
		})
	}
}

func TestService_PersistenceErrorIsReturnedForRedelivery(t *testing.T) {
	recorder := &stubRecorder{err: pkgerrors.Wrap(pkgerrors.CodePersistence, errors.New("db down"), "record payment")}
	svc, _ := NewService(ServiceParams{Payments: recorder})

	pi := &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Metadata: map[string]string{"session_id": "s1"}}
	err := svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentSucceeded, pi))
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodePersistence {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestService_IgnoresUnrelatedEvents(t *testing.T) {
	recorder := &stubRecorder{}
	svc, _ := NewService(ServiceParams{Payments: recorder})

	event := &stripe.Event{Type: stripe.EventTypeCustomerCreated, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failed := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, &stripe.PaymentIntent{ID: "pi_2", LastPaymentError: &stripe.Error{Msg: "card declined"}})
	if err := svc.HandleEvent(context.Background(), failed); err != nil {
		t.Fatalf("unexpected error on failed intent: %v", err)
	}
	if len(recorder.calls) != 0 {
		t.Fatalf("expected no recordings, got %d", len(recorder.calls))
	}
}

func TestService_RejectsMissingData(t *testing.T) {
	svc, _ := NewService(ServiceParams{Payments: &stubRecorder{}})
	if err := svc.HandleEvent(context.Background(), &stripe.Event{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

type memoryEvents struct {
	data map[string]string
}

func (m *memoryEvents) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memoryEvents) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryEvents) StripeEventKey(id string) string {
	return "rs:stripe_event:" + id
}

func TestIdempotencyGuard(t *testing.T) {
	guard, err := NewIdempotencyGuard(&memoryEvents{data: map[string]string{}}, time.Hour)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery should be new, seen=%v err=%v", seen, err)
	}
	seen, _ = guard.CheckAndMark(ctx, "evt_1")
	if !seen {
		t.Fatalf("redelivery should be detected")
	}
	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, _ = guard.CheckAndMark(ctx, "evt_1")
	if seen {
		t.Fatalf("expected mark cleared after delete")
	}
	if _, err := guard.CheckAndMark(ctx, ""); err == nil {
		t.Fatalf("expected error for empty event id")
	}
}
