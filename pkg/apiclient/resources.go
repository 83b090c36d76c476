package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/residency-backend/internal/agreements"
	"github.com/angelmondragon/residency-backend/internal/apartments"
	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/internal/gate"
	"github.com/angelmondragon/residency-backend/internal/payments"
	"github.com/angelmondragon/residency-backend/internal/users"
	"github.com/angelmondragon/residency-backend/pkg/enums"
)

type GateResult struct {
	Route    gate.Route    `json:"route"`
	Decision gate.Decision `json:"decision"`
	Role     enums.Role    `json:"role,omitempty"`
}

type Profile struct {
	User   *users.UserDTO `json:"user"`
	Role   enums.Role     `json:"role"`
	Routes []gate.Route   `json:"routes"`
}

type ApartmentFilter struct {
	MinRent       string
	MaxRent       string
	AvailableOnly bool
	Page          int
	Limit         int
}

func (c *Client) Gate(ctx context.Context, route string) (*GateResult, error) {
	var out GateResult
	err := c.get(ctx, "/api/v1/gate", url.Values{"route": {route}}, &out)
	return &out, err
}

func (c *Client) Register(ctx context.Context) (*users.UserDTO, error) {
	var out users.UserDTO
	err := c.send(ctx, http.MethodPost, "/api/v1/users/register", nil, "", &out)
	return &out, err
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	err := c.get(ctx, "/api/v1/users/me", nil, &out)
	return &out, err
}

func (c *Client) Apartments(ctx context.Context, f ApartmentFilter) (*apartments.ListResult, error) {
	q := url.Values{}
	if f.MinRent != "" {
		q.Set("min_rent", f.MinRent)
	}
	if f.MaxRent != "" {
		q.Set("max_rent", f.MaxRent)
	}
	if f.AvailableOnly {
		q.Set("available", "true")
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var out apartments.ListResult
	err := c.get(ctx, "/api/v1/apartments", q, &out)
	return &out, err
}

func (c *Client) SubmitAgreement(ctx context.Context, apartmentID uuid.UUID, idempotencyKey string) (*agreements.AgreementDTO, error) {
	var out agreements.AgreementDTO
	body := map[string]string{"apartment_id": apartmentID.String()}
	err := c.send(ctx, http.MethodPost, "/api/v1/agreements", body, idempotencyKey, &out)
	return &out, err
}

func (c *Client) MyAgreements(ctx context.Context) ([]agreements.AgreementDTO, error) {
	var out []agreements.AgreementDTO
	err := c.get(ctx, "/api/v1/agreements/me", nil, &out)
	return out, err
}

// AgreementRequests lists agreements for admins; an empty status means pending.
func (c *Client) AgreementRequests(ctx context.Context, status string) ([]agreements.AgreementDTO, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out []agreements.AgreementDTO
	err := c.get(ctx, "/api/v1/admin/agreements", q, &out)
	return out, err
}

func (c *Client) DecideAgreement(ctx context.Context, agreementID uuid.UUID, accept bool, idempotencyKey string) (*agreements.DecisionDTO, error) {
	var out agreements.DecisionDTO
	body := map[string]bool{"accept": accept}
	err := c.send(ctx, http.MethodPatch, "/api/v1/admin/agreements/"+agreementID.String(), body, idempotencyKey, &out)
	return &out, err
}

func (c *Client) AvailableCoupons(ctx context.Context) ([]coupons.CouponDTO, error) {
	var out []coupons.CouponDTO
	err := c.get(ctx, "/api/v1/coupons", nil, &out)
	return out, err
}

func (c *Client) CreateCoupon(ctx context.Context, code string, discount int, description string) (*coupons.CouponDTO, error) {
	var out coupons.CouponDTO
	body := map[string]any{"code": code, "discount": discount, "description": description}
	err := c.send(ctx, http.MethodPost, "/api/v1/admin/coupons", body, "", &out)
	return &out, err
}

func (c *Client) StartPayment(ctx context.Context, month string) (*payments.SessionDTO, error) {
	var out payments.SessionDTO
	err := c.send(ctx, http.MethodPost, "/api/v1/payments/sessions", map[string]string{"month": month}, "", &out)
	return &out, err
}

func (c *Client) ApplyCoupon(ctx context.Context, sessionID, code string) (*payments.CouponOutcome, error) {
	var out payments.CouponOutcome
	err := c.send(ctx, http.MethodPost, "/api/v1/payments/sessions/"+url.PathEscape(sessionID)+"/coupon", map[string]string{"code": code}, "", &out)
	return &out, err
}

func (c *Client) CreateIntent(ctx context.Context, sessionID, idempotencyKey string) (*payments.Intent, error) {
	var out payments.Intent
	err := c.send(ctx, http.MethodPost, "/api/v1/payments/sessions/"+url.PathEscape(sessionID)+"/intent", nil, idempotencyKey, &out)
	return &out, err
}

func (c *Client) ConfirmPayment(ctx context.Context, sessionID, paymentIntentID, idempotencyKey string) (*payments.PaymentDTO, error) {
	var out payments.PaymentDTO
	body := map[string]string{"payment_intent_id": paymentIntentID}
	err := c.send(ctx, http.MethodPost, "/api/v1/payments/sessions/"+url.PathEscape(sessionID)+"/confirm", body, idempotencyKey, &out)
	return &out, err
}

func (c *Client) PaymentHistory(ctx context.Context, month string) ([]payments.PaymentDTO, error) {
	q := url.Values{}
	if month != "" {
		q.Set("month", month)
	}
	var out []payments.PaymentDTO
	err := c.get(ctx, "/api/v1/payments/me", q, &out)
	return out, err
}
