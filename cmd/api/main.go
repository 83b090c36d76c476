package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/residency-backend/api/controllers"
	"github.com/angelmondragon/residency-backend/api/routes"
	"github.com/angelmondragon/residency-backend/internal/agreements"
	"github.com/angelmondragon/residency-backend/internal/announcements"
	"github.com/angelmondragon/residency-backend/internal/apartments"
	"github.com/angelmondragon/residency-backend/internal/coupons"
	"github.com/angelmondragon/residency-backend/internal/dashboard"
	"github.com/angelmondragon/residency-backend/internal/gate"
	"github.com/angelmondragon/residency-backend/internal/payments"
	"github.com/angelmondragon/residency-backend/internal/users"
	stripewebhook "github.com/angelmondragon/residency-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/residency-backend/pkg/auth/session"
	"github.com/angelmondragon/residency-backend/pkg/config"
	"github.com/angelmondragon/residency-backend/pkg/db"
	"github.com/angelmondragon/residency-backend/pkg/identity"
	"github.com/angelmondragon/residency-backend/pkg/logger"
	"github.com/angelmondragon/residency-backend/pkg/metrics"
	"github.com/angelmondragon/residency-backend/pkg/migrate"
	"github.com/angelmondragon/residency-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/residency-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	defer func() {
		if err := multierr.Combine(dbClient.Close(), redisClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	verifier, err := identity.NewVerifier(ctx, cfg.Identity, logg)
	requireResource(ctx, logg, "identity verifier", err)

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe client", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	workflowMetrics := metrics.NewWorkflowMetrics(registry)

	roleCache, err := session.NewRoleCache(redisClient, cfg.Session.RoleCacheTTL)
	requireResource(ctx, logg, "role cache", err)

	usersRepo := users.NewRepository(dbClient.DB())
	usersService, err := users.NewService(usersRepo, roleCache, logg)
	requireResource(ctx, logg, "users service", err)

	gateService, err := gate.New(usersService)
	requireResource(ctx, logg, "gate", err)

	apartmentsService, err := apartments.NewService(apartments.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "apartments service", err)

	agreementsService, err := agreements.NewService(agreements.ServiceParams{
		Repo:       agreements.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Apartments: apartmentsService,
		Promoter:   users.NewPromoter(usersRepo),
		Roles:      usersService,
		Metrics:    workflowMetrics,
		Logger:     logg,
	})
	requireResource(ctx, logg, "agreements service", err)

	couponsRepo := coupons.NewRepository(dbClient.DB())
	couponsService, err := coupons.NewService(couponsRepo)
	requireResource(ctx, logg, "coupons service", err)

	evaluator, err := coupons.NewEvaluator(couponsRepo, workflowMetrics)
	requireResource(ctx, logg, "coupon evaluator", err)

	sessionStore, err := payments.NewSessionStore(redisClient, cfg.Session.PaymentSessionTTL)
	requireResource(ctx, logg, "payment session store", err)

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Leases:   agreementsService,
		Coupons:  evaluator,
		Sessions: sessionStore,
		Repo:     payments.NewRepository(dbClient.DB()),
		Intents:  pkgstripe.NewPaymentIntents(stripeClient),
		Currency: stripeClient.Currency(),
		Metrics:  workflowMetrics,
		Logger:   logg,
	})
	requireResource(ctx, logg, "payments service", err)

	announcementsService, err := announcements.NewService(announcements.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "announcements service", err)

	dashboardService, err := dashboard.NewService(apartmentsService, usersService, agreementsService)
	requireResource(ctx, logg, "dashboard service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments: paymentsService,
		Logger:   logg,
	})
	requireResource(ctx, logg, "stripe webhook service", err)

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Session.WebhookGuardTTL)
	requireResource(ctx, logg, "stripe webhook guard", err)

	handler := routes.NewRouter(routes.Dependencies{
		Config:   cfg,
		Logger:   logg,
		Metrics:  workflowMetrics,
		Gatherer: registry,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Store:    redisClient,
		Verifier: verifier,

		Gate:          gateService,
		Users:         usersService,
		Apartments:    apartmentsService,
		Agreements:    agreementsService,
		Coupons:       couponsService,
		Payments:      paymentsService,
		Announcements: announcementsService,
		Dashboard:     dashboardService,

		StripeWebhook: webhookService,
		StripeClient:  stripeClient,
		StripeGuard:   webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":               cfg.App.Env,
		"addr":              addr,
		"identity_provider": cfg.Identity.NormalizedProvider(),
		"stripe_env":        stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to initialize "+name, err)
	os.Exit(1)
}
