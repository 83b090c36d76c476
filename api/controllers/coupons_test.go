package controllers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
)

type stubCouponsService struct {
	created *coupons.CreateInput
	toggled *bool
}

func (s *stubCouponsService) Create(_ context.Context, input coupons.CreateInput) (*models.Coupon, error) {
	s.created = &input
	if strings.EqualFold(input.Code, "TAKEN") {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
	}
	return &models.Coupon{ID: uuid.New(), Code: strings.ToUpper(input.Code), Discount: input.Discount, Available: true}, nil
}

func (s *stubCouponsService) List(context.Context) ([]models.Coupon, error) {
	return []models.Coupon{{Code: "OFF", Available: false}, {Code: "ON", Available: true}}, nil
}

func (s *stubCouponsService) ListAvailable(context.Context) ([]models.Coupon, error) {
	return []models.Coupon{{Code: "ON", Available: true}}, nil
}

func (s *stubCouponsService) SetAvailability(_ context.Context, id uuid.UUID, available bool) (*models.Coupon, error) {
	s.toggled = &available
	return &models.Coupon{ID: id, Available: available}, nil
}

func (s *stubCouponsService) Delete(context.Context, uuid.UUID) error {
	return nil
}

func TestCouponsAvailableIsPublic(t *testing.T) {
	rec := serve(CouponsAvailable(&stubCouponsService{}, nil), newRequest(http.MethodGet, "/api/v1/coupons", "", requestOpts{}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var list []coupons.CouponDTO
	decodeData(t, rec, &list)
	if len(list) != 1 || list[0].Code != "ON" {
		t.Fatalf("expected only available coupons, got %+v", list)
	}
}

func TestAdminCouponCreate(t *testing.T) {
	svc := &stubCouponsService{}
	rec := serve(AdminCouponCreate(svc, nil), newRequest(http.MethodPost, "/", `{"code":"spring","discount":15,"description":"  spring sale  "}`, requestOpts{email: "admin@example.com"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.created.Description != "spring sale" {
		t.Fatalf("expected trimmed description, got %q", svc.created.Description)
	}

	rec = serve(AdminCouponCreate(svc, nil), newRequest(http.MethodPost, "/", `{"code":"big","discount":150}`, requestOpts{email: "admin@example.com"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for discount over 100, got %d", rec.Code)
	}

	rec = serve(AdminCouponCreate(svc, nil), newRequest(http.MethodPost, "/", `{"code":"taken","discount":5}`, requestOpts{email: "admin@example.com"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", rec.Code)
	}
}

func TestAdminCouponAvailability(t *testing.T) {
	svc := &stubCouponsService{}
	id := uuid.New()
	opts := requestOpts{email: "admin@example.com", params: map[string]string{"couponId": id.String()}}

	rec := serve(AdminCouponAvailability(svc, nil), newRequest(http.MethodPatch, "/", `{"available":false}`, opts))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.toggled == nil || *svc.toggled {
		t.Fatalf("expected coupon disabled")
	}

	rec = serve(AdminCouponDelete(svc, nil), newRequest(http.MethodDelete, "/", "", opts))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
}
