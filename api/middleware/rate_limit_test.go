package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/identity"
)

type memoryLimiter struct {
	counts map[string]int64
}

func (m *memoryLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

func TestRateLimitBlocksAfterLimitPerCaller(t *testing.T) {
	store := &memoryLimiter{counts: map[string]int64{}}
	policy := NewRateLimitPolicy("coupon", time.Minute, 2)
	handler := RateLimit(policy, store, nil)(okHandler())

	send := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), &identity.Identity{Email: email}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("a@example.com"); code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, code)
		}
	}
	if code := send("A@example.com"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if code := send("b@example.com"); code != http.StatusOK {
		t.Fatalf("other callers must not share the window, got %d", code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("coupon", 0, 0), &memoryLimiter{counts: map[string]int64{}}, nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
