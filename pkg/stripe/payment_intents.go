package stripe

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v84"
)

// PaymentIntents is the create/retrieve exchange used for rent payments.
type PaymentIntents interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

type paymentIntentsWrapper struct {
	api *stripe.Client
}

// NewPaymentIntents returns the PaymentIntent API bound to the initialized client.
func NewPaymentIntents(client *Client) PaymentIntents {
	api := client.API()
	if api == nil {
		return nil
	}
	return &paymentIntentsWrapper{api: api}
}

func (w *paymentIntentsWrapper) Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		return nil, errors.New("payment intent params required")
	}
	return w.api.V1PaymentIntents.Create(ctx, params)
}

func (w *paymentIntentsWrapper) Get(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error) {
	return w.api.V1PaymentIntents.Retrieve(ctx, id, params)
}

// DeclineMessage extracts the processor's user-facing reason for a failed
// intent. It returns the empty string when Stripe supplied none.
func DeclineMessage(pi *stripe.PaymentIntent) string {
	if pi == nil || pi.LastPaymentError == nil {
		return ""
	}
	return pi.LastPaymentError.Msg
}

// ErrorMessage returns the message carried by a Stripe API error, falling back
// to err.Error().
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
