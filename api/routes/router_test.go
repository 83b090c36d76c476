package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/residency-backend/api/controllers"
	"github.com/angelmondragon/residency-backend/internal/apartments"
	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/internal/gate"
	"github.com/angelmondragon/residency-backend/pkg/config"
	"github.com/angelmondragon/residency-backend/pkg/db/models"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/angelmondragon/residency-backend/pkg/metrics"
	"github.com/angelmondragon/residency-backend/pkg/pagination"
)

var testAccounts = map[string]enums.Role{
	"user@example.com":   enums.RoleUser,
	"member@example.com": enums.RoleMember,
	"admin@example.com":  enums.RoleAdmin,
	"root@example.com":   enums.RoleSuperAdmin,
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// tokens are the account email itself.
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*identity.Identity, error) {
	if _, ok := testAccounts[token]; !ok {
		return nil, identity.ErrInvalidToken
	}
	return &identity.Identity{Email: token, DisplayName: token, Token: token}, nil
}

type stubUsers struct {
	controllers.UsersService
}

func (stubUsers) ResolveRole(_ context.Context, email string) (enums.Role, error) {
	if role, ok := testAccounts[email]; ok {
		return role, nil
	}
	return enums.RoleUser, nil
}

func (stubUsers) ListMembers(context.Context) ([]models.User, error) {
	return []models.User{{Email: "member@example.com", Role: enums.RoleMember}}, nil
}

type stubApartments struct {
	apartments.Service
}

func (stubApartments) List(_ context.Context, input apartments.ListInput) (*apartments.ListResult, error) {
	return &apartments.ListResult{
		Items: []apartments.ApartmentDTO{},
		Page:  pagination.NewPage(input.Pagination, 0),
	}, nil
}

type stubCoupons struct {
	coupons.Service
}

func (stubCoupons) List(context.Context) ([]models.Coupon, error) {
	return []models.Coupon{{ID: uuid.New(), Code: "SAVE10", Discount: 10, Available: true}}, nil
}

func (stubCoupons) ListAvailable(ctx context.Context) ([]models.Coupon, error) {
	return stubCoupons{}.List(ctx)
}

type stubAgreements struct {
	controllers.AgreementsService
	submitted int
}

func (s *stubAgreements) SubmitRequest(_ context.Context, tenant identity.Identity, apartmentID uuid.UUID) (*models.Agreement, error) {
	s.submitted++
	return &models.Agreement{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		TenantEmail: tenant.Email,
		Status:      enums.AgreementStatusPending,
	}, nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	hits map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, hits: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		raw, _ := json.Marshal(v)
		m.data[key] = string(raw)
	}
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[scope]++
	return m.hits[scope] <= limit, m.hits[scope], nil
}

type routerFixture struct {
	handler    http.Handler
	agreements *stubAgreements
}

func newTestRouter(t *testing.T) routerFixture {
	t.Helper()
	cfg := &config.Config{
		App:       config.AppConfig{Env: "test", Port: "0"},
		RateLimit: config.RateLimitConfig{CouponWindow: time.Minute, CouponLimit: 10},
	}
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})

	users := stubUsers{}
	g, err := gate.New(users)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	reg := prometheus.NewRegistry()
	agreementsStub := &stubAgreements{}

	handler := NewRouter(Dependencies{
		Config:     cfg,
		Logger:     logg,
		Metrics:    metrics.NewWorkflowMetrics(reg),
		Gatherer:   reg,
		Pingers:    map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		Store:      newMemoryStore(),
		Verifier:   stubVerifier{},
		Gate:       g,
		Users:      users,
		Apartments: stubApartments{},
		Agreements: agreementsStub,
		Coupons:    stubCoupons{},
	})
	return routerFixture{handler: handler, agreements: agreementsStub}
}

func (f routerFixture) do(method, path, token string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	f := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		if rec := f.do(http.MethodGet, path, "", nil, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestPublicRoutesNeedNoToken(t *testing.T) {
	f := newTestRouter(t)

	if rec := f.do(http.MethodGet, "/api/v1/apartments?min_rent=500", "", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("apartments: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := f.do(http.MethodGet, "/api/v1/coupons", "", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("coupons: expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireIdentity(t *testing.T) {
	f := newTestRouter(t)

	if rec := f.do(http.MethodGet, "/api/v1/admin/coupons", "", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/admin/coupons", "forged", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestRoleExactRouteGroups(t *testing.T) {
	f := newTestRouter(t)

	cases := []struct {
		name   string
		token  string
		path   string
		status int
	}{
		{"admin manages coupons", "admin@example.com", "/api/v1/admin/coupons", http.StatusOK},
		{"member cannot manage coupons", "member@example.com", "/api/v1/admin/coupons", http.StatusForbidden},
		{"super admin is not an admin", "root@example.com", "/api/v1/admin/coupons", http.StatusForbidden},
		{"admin manages members", "admin@example.com", "/api/v1/admin/members", http.StatusOK},
		{"user cannot see payment history", "user@example.com", "/api/v1/payments/me", http.StatusForbidden},
		{"admin cannot list users", "admin@example.com", "/api/v1/super-admin/users", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tc.path, tc.token, nil, nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGateEndpoint(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(http.MethodGet, "/api/v1/gate?route=make-payment", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"outcome":"login"`) || !strings.Contains(rec.Body.String(), `"return_to":"make-payment"`) {
		t.Fatalf("expected login decision with return route, got %s", rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/v1/gate?route=make-payment", "member@example.com", nil, nil)
	if !strings.Contains(rec.Body.String(), `"outcome":"allow"`) {
		t.Fatalf("expected member allowed, got %s", rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/v1/gate?route=dashboard", "member@example.com", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown route, got %d", rec.Code)
	}
}

func TestAgreementSubmissionIsIdempotent(t *testing.T) {
	f := newTestRouter(t)
	body := `{"apartment_id":"` + uuid.NewString() + `"}`

	rec := f.do(http.MethodPost, "/api/v1/agreements", "user@example.com", strings.NewReader(body), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}

	headers := map[string]string{"Idempotency-Key": "submit-1", "Content-Type": "application/json"}
	first := f.do(http.MethodPost, "/api/v1/agreements", "user@example.com", strings.NewReader(body), headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", first.Code, first.Body.String())
	}
	second := f.do(http.MethodPost, "/api/v1/agreements", "user@example.com", strings.NewReader(body), headers)
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replayed response, got %d (%s)", second.Code, second.Body.String())
	}
	if f.agreements.submitted != 1 {
		t.Fatalf("expected one submission, got %d", f.agreements.submitted)
	}
}

func TestAgreementSubmissionTrailingSlashStillNeedsKey(t *testing.T) {
	f := newTestRouter(t)
	body := `{"apartment_id":"` + uuid.NewString() + `"}`

	rec := f.do(http.MethodPost, "/api/v1/agreements/", "user@example.com", strings.NewReader(body), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key on trailing slash, got %d (%s)", rec.Code, rec.Body.String())
	}

	headers := map[string]string{"Idempotency-Key": "submit-slash", "Content-Type": "application/json"}
	first := f.do(http.MethodPost, "/api/v1/agreements", "user@example.com", strings.NewReader(body), headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", first.Code, first.Body.String())
	}
	replay := f.do(http.MethodPost, "/api/v1/agreements/", "user@example.com", strings.NewReader(body), headers)
	if replay.Body.String() != first.Body.String() {
		t.Fatalf("expected trailing slash to replay the stored response, got %d (%s)", replay.Code, replay.Body.String())
	}
	if f.agreements.submitted != 1 {
		t.Fatalf("expected one submission across both spellings, got %d", f.agreements.submitted)
	}
}
