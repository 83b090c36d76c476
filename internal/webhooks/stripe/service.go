package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/residency-backend/internal/payments"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/stripe/stripe-go/v84"
)

type paymentRecorder interface {
	RecordFromIntent(ctx context.Context, pi *stripe.PaymentIntent) (*models.Payment, error)
}

type ServiceParams struct {
	Payments paymentRecorder
	Logger   *logger.Logger
}

// Service reacts to PaymentIntent events. A succeeded intent is recorded so
// captures survive a confirm call that failed after Stripe charged the card.
type Service struct {
	payments paymentRecorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment recorder required")
	}
	return &Service{payments: params.Payments, logg: params.Logger}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		pi, err := decodeIntent(event)
		if err != nil {
			return err
		}
		if !payments.IsRentIntent(pi) {
			s.warn(ctx, pi.ID, "stripe.payment_intent_ignored: not a rent payment")
			return nil
		}
		if _, err := s.payments.RecordFromIntent(ctx, pi); err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "payment_intent_id", pi.ID), "stripe.payment_intent_unrecorded", err)
			}
			return err
		}
		return nil
	case stripe.EventTypePaymentIntentPaymentFailed:
		pi, err := decodeIntent(event)
		if err != nil {
			return err
		}
		msg := "payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			msg = pi.LastPaymentError.Msg
		}
		s.warn(ctx, pi.ID, "stripe.payment_intent_failed: "+msg)
		return nil
	default:
		return nil
	}
}

func (s *Service) warn(ctx context.Context, intentID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "payment_intent_id", intentID), msg)
}

func decodeIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if pi.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return &pi, nil
}
