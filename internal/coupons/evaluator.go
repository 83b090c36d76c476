package coupons

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/metrics"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const invalidMessage = "this coupon is not available"

var hundred = decimal.NewFromInt(100)

type couponLookup interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// Result is the outcome of evaluating a coupon against a base amount.
type Result struct {
	Code           string          `json:"code,omitempty"`
	Discount       int             `json:"discount"`
	Base           decimal.Decimal `json:"base"`
	Discounted     decimal.Decimal `json:"discounted"`
	AlreadyApplied bool            `json:"already_applied"`
}

// Evaluator validates coupons and computes discounted amounts. It never
// mutates the coupon.
type Evaluator struct {
	coupons couponLookup
	metrics *metrics.WorkflowMetrics
}

func NewEvaluator(coupons couponLookup, m *metrics.WorkflowMetrics) (*Evaluator, error) {
	if coupons == nil {
		return nil, fmt.Errorf("coupon lookup required")
	}
	return &Evaluator{coupons: coupons, metrics: m}, nil
}

// Apply discounts base by the coupon's percentage. A missing or unavailable
// coupon fails with COUPON_INVALID and a result whose amount equals base.
func (e *Evaluator) Apply(ctx context.Context, code string, base decimal.Decimal) (Result, error) {
	unchanged := Result{Base: base, Discounted: base}
	normalized := NormalizeCode(code)
	if normalized == "" {
		e.metrics.IncCoupon(metrics.OutcomeInvalid)
		return unchanged, pkgerrors.New(pkgerrors.CodeCouponInvalid, invalidMessage)
	}

	coupon, err := e.coupons.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.metrics.IncCoupon(metrics.OutcomeInvalid)
			return unchanged, pkgerrors.New(pkgerrors.CodeCouponInvalid, invalidMessage)
		}
		return unchanged, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup coupon")
	}
	if !coupon.Available {
		e.metrics.IncCoupon(metrics.OutcomeInvalid)
		return unchanged, pkgerrors.New(pkgerrors.CodeCouponInvalid, invalidMessage)
	}

	e.metrics.IncCoupon(metrics.OutcomeApplied)
	return Result{
		Code:       coupon.Code,
		Discount:   coupon.Discount,
		Base:       base,
		Discounted: Discount(base, coupon.Discount),
	}, nil
}

// Discount returns base - base*percent/100 rounded to cents.
func Discount(base decimal.Decimal, percent int) decimal.Decimal {
	off := base.Mul(decimal.NewFromInt(int64(percent))).Div(hundred)
	return base.Sub(off).Round(2)
}
