package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/residency-backend/pkg/config"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(config.ClientConfig{
		BaseURL:      url,
		Token:        "tok",
		Timeout:      time.Second,
		ReadRetries:  3,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestGetRetriesGatewayFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"code":"DEPENDENCY_ERROR","message":"try later"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"code":"SAVE10","discount":10}]}`)
	}))
	defer srv.Close()

	list, err := newTestClient(t, srv.URL).AvailableCoupons(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SAVE10", list[0].Code)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).PaymentHistory(context.Background(), "2026-03")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestWritesAreNeverRetried(t *testing.T) {
	var calls int32
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		key = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitAgreement(context.Background(), uuid.New(), "")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.NotEmpty(t, key)
}

func TestUnauthorizedEndsSession(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"code":"FORBIDDEN","message":"no"}}`)
		}))

		_, err := newTestClient(t, srv.URL).Profile(context.Background())
		assert.True(t, errors.Is(err, ErrSessionEnded), "status %d should end the session", status)
		srv.Close()
	}
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/payments/sessions/s1/confirm", r.URL.Path)
		assert.Equal(t, "confirm-1", r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"code":"PAYMENT_DECLINED","message":"Your card was declined."}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ConfirmPayment(context.Background(), "s1", "pi_1", "confirm-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "PAYMENT_DECLINED", apiErr.Code)
	assert.Equal(t, "Your card was declined.", apiErr.Message)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(config.ClientConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}
