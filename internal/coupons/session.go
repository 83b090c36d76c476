package coupons

import (
	"context"

	"github.com/shopspring/decimal"
)

type applier interface {
	Apply(ctx context.Context, code string, base decimal.Decimal) (Result, error)
}

// AppliedCoupon records the coupon that discounted a session.
type AppliedCoupon struct {
	Code     string `json:"code"`
	Discount int    `json:"discount"`
}

// Session tracks coupon application for one payment flow. Once a coupon has
// been applied the discounted amount is frozen: later applies, with the same
// or another code, return it unchanged.
type Session struct {
	Base       decimal.Decimal `json:"base"`
	Discounted decimal.Decimal `json:"discounted"`
	Coupon     *AppliedCoupon  `json:"coupon,omitempty"`
}

func NewSession(base decimal.Decimal) Session {
	base = base.Round(2)
	return Session{Base: base, Discounted: base}
}

func (s *Session) Applied() bool {
	return s.Coupon != nil
}

// Apply evaluates code against the session's base amount. Failures leave the
// session untouched.
func (s *Session) Apply(ctx context.Context, evaluator applier, code string) (Result, error) {
	if s.Applied() {
		return Result{
			Code:           s.Coupon.Code,
			Discount:       s.Coupon.Discount,
			Base:           s.Base,
			Discounted:     s.Discounted,
			AlreadyApplied: true,
		}, nil
	}

	res, err := evaluator.Apply(ctx, code, s.Base)
	if err != nil {
		res.Discounted = s.Discounted
		return res, err
	}
	s.Discounted = res.Discounted
	s.Coupon = &AppliedCoupon{Code: res.Code, Discount: res.Discount}
	return res, nil
}
