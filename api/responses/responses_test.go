package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/residency-backend/pkg/errors"
	"github.com/angelmondragon/residency-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return body.Error
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}

	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}
	apiErr := decodeError(t, w)
	if apiErr.Code != string(pkgerrors.CodeValidation) || apiErr.Message != "bad input" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if apiErr.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorPassesProcessorMessageThrough(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodePaymentDeclined, "Your card has insufficient funds."))

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	if apiErr := decodeError(t, w); apiErr.Message != "Your card has insufficient funds." {
		t.Fatalf("expected decline message verbatim, got %q", apiErr.Message)
	}
}

func TestWriteErrorStatusPerCode(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeUnauthorized:       http.StatusUnauthorized,
		pkgerrors.CodeForbidden:          http.StatusForbidden,
		pkgerrors.CodeDuplicateAgreement: http.StatusConflict,
		pkgerrors.CodeStateConflict:      http.StatusUnprocessableEntity,
		pkgerrors.CodeCouponInvalid:      http.StatusUnprocessableEntity,
		pkgerrors.CodePersistence:        http.StatusInternalServerError,
		pkgerrors.CodeDependency:         http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		w := httptest.NewRecorder()
		WriteError(context.Background(), nil, w, pkgerrors.New(code, "x"))
		if w.Code != status {
			t.Fatalf("%s: expected %d got %d", code, status, w.Code)
		}
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}
	apiErr := decodeError(t, w)
	if apiErr.Message != "internal server error" {
		t.Fatalf("internal error text must not leak, got %q", apiErr.Message)
	}
}
