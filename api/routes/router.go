package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/residency-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/residency-backend/api/controllers/webhooks"
	"github.com/angelmondragon/residency-backend/api/middleware"
	"github.com/angelmondragon/residency-backend/internal/announcements"
	"github.com/angelmondragon/residency-backend/internal/apartments"
	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/internal/gate"
	"github.com/angelmondragon/residency-backend/internal/payments"
	"github.com/angelmondragon/residency-backend/pkg/config"
	"github.com/angelmondragon/residency-backend/pkg/enums"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/angelmondragon/residency-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/residency-backend/pkg/redis"
)

// Store backs request idempotency and rate limiting.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type roleResolver interface {
	ResolveRole(ctx context.Context, email string) (enums.Role, error)
}

type usersService interface {
	controllers.UsersService
	roleResolver
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

// Dependencies is everything the router hands to middleware and controllers.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.WorkflowMetrics
	Gatherer prometheus.Gatherer
	Pingers  map[string]controllers.Pinger
	Store    Store
	Verifier identity.Verifier

	Gate          controllers.GateChecker
	Users         usersService
	Apartments    apartments.Service
	Agreements    controllers.AgreementsService
	Coupons       coupons.Service
	Payments      payments.Service
	Announcements announcements.Service
	Dashboard     controllers.OverviewProvider

	StripeWebhook webhookcontrollers.StripeWebhookService
	StripeClient  signingSecretSource
	StripeGuard   webhookGuard
}

func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.Metrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	couponPolicy := middleware.NewRateLimitPolicy("coupon_apply", cfg.RateLimit.CouponWindow, cfg.RateLimit.CouponLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeWebhook, d.StripeClient, d.StripeGuard, logg))
	})

	// public catalogue
	r.Route("/api/v1/apartments", func(r chi.Router) {
		r.Get("/", controllers.ApartmentsList(d.Apartments, logg))
		r.Get("/{apartmentId}", controllers.ApartmentDetail(d.Apartments, logg))
	})
	r.Get("/api/v1/coupons", controllers.CouponsAvailable(d.Coupons, logg))

	r.With(middleware.OptionalIdentity(d.Verifier, logg)).Get("/api/v1/gate", controllers.GateDecision(d.Gate, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(d.Verifier, logg))
		r.Use(middleware.ResolveRole(d.Users, logg))
		r.Use(middleware.Idempotency(d.Store, logg))

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", controllers.UserRegister(d.Users, logg))
			r.Get("/me", controllers.UserProfile(d.Users, logg))
		})

		r.Route("/agreements", func(r chi.Router) {
			r.Post("/", controllers.AgreementSubmit(d.Agreements, logg))
			r.Get("/me", controllers.AgreementsMine(d.Agreements, logg))
		})

		r.With(middleware.RequireRoute(gate.RouteAnnouncements, logg)).
			Get("/announcements", controllers.AnnouncementsList(d.Announcements, logg))

		r.Route("/payments", func(r chi.Router) {
			r.With(middleware.RequireRoute(gate.RoutePaymentHistory, logg)).
				Get("/me", controllers.PaymentHistory(d.Payments, logg))

			r.Route("/sessions", func(r chi.Router) {
				r.Use(middleware.RequireRoute(gate.RouteMakePayment, logg))
				r.Post("/", controllers.PaymentSessionStart(d.Payments, logg))
				r.Get("/{sessionId}", controllers.PaymentSessionGet(d.Payments, logg))
				r.With(middleware.RateLimit(couponPolicy, d.Store, logg)).
					Post("/{sessionId}/coupon", controllers.PaymentApplyCoupon(d.Payments, logg))
				r.Post("/{sessionId}/intent", controllers.PaymentCreateIntent(d.Payments, logg))
				r.Post("/{sessionId}/confirm", controllers.PaymentConfirm(d.Payments, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RequireRoute(gate.RouteAdminProfile, logg)).
				Get("/overview", controllers.Overview(d.Dashboard, logg))

			r.Route("/members", func(r chi.Router) {
				r.Use(middleware.RequireRoute(gate.RouteManageMembers, logg))
				r.Get("/", controllers.AdminMembersList(d.Users, logg))
				r.Delete("/{email}", controllers.AdminMemberRemove(d.Users, logg))
			})

			r.Route("/announcements", func(r chi.Router) {
				r.Use(middleware.RequireRoute(gate.RouteMakeAnnouncement, logg))
				r.Get("/", controllers.AnnouncementsList(d.Announcements, logg))
				r.Post("/", controllers.AdminAnnouncementCreate(d.Announcements, logg))
			})

			r.Route("/agreements", func(r chi.Router) {
				r.Use(middleware.RequireRoute(gate.RouteAgreementRequests, logg))
				r.Get("/", controllers.AdminAgreementsList(d.Agreements, logg))
				r.Patch("/{agreementId}", controllers.AdminAgreementDecide(d.Agreements, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Use(middleware.RequireRoute(gate.RouteManageCoupons, logg))
				r.Get("/", controllers.AdminCouponsList(d.Coupons, logg))
				r.Post("/", controllers.AdminCouponCreate(d.Coupons, logg))
				r.Patch("/{couponId}", controllers.AdminCouponAvailability(d.Coupons, logg))
				r.Delete("/{couponId}", controllers.AdminCouponDelete(d.Coupons, logg))
			})

			r.Route("/apartments", func(r chi.Router) {
				r.Use(middleware.RequireRoute(gate.RouteManageProperties, logg))
				r.Post("/", controllers.AdminApartmentCreate(d.Apartments, logg))
				r.Put("/{apartmentId}", controllers.AdminApartmentUpdate(d.Apartments, logg))
				r.Patch("/{apartmentId}/availability", controllers.AdminApartmentAvailability(d.Apartments, logg))
				r.Delete("/{apartmentId}", controllers.AdminApartmentDelete(d.Apartments, logg))
			})
		})

		r.Route("/super-admin", func(r chi.Router) {
			r.With(middleware.RequireRoute(gate.RouteSuperAdminProfile, logg)).
				Get("/overview", controllers.Overview(d.Dashboard, logg))

			r.Route("/users", func(r chi.Router) {
				r.With(middleware.RequireRoute(gate.RouteManageUsers, logg)).
					Get("/", controllers.SuperAdminUsersList(d.Users, logg))
				r.With(middleware.RequireRoute(gate.RouteManageUsers, logg)).
					Delete("/{email}", controllers.SuperAdminDeleteUser(d.Users, logg))
				r.With(middleware.RequireRoute(gate.RouteManageRoles, logg)).
					Patch("/{email}/role", controllers.SuperAdminChangeRole(d.Users, logg))
			})
		})
	})

	return r
}
