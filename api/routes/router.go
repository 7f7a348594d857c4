package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bikerent-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/bikerent-backend/api/controllers/webhooks"
	"github.com/angelmondragon/bikerent-backend/api/middleware"
	"github.com/angelmondragon/bikerent-backend/internal/auth"
	"github.com/angelmondragon/bikerent-backend/internal/customers"
	"github.com/angelmondragon/bikerent-backend/internal/dashboard"
	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/internal/payments"
	phonepewebhook "github.com/angelmondragon/bikerent-backend/internal/webhooks/phonepe"
	pkgAuth "github.com/angelmondragon/bikerent-backend/pkg/auth"
	"github.com/angelmondragon/bikerent-backend/pkg/auth/session"
	"github.com/angelmondragon/bikerent-backend/pkg/config"
	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/bikerent-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, scope, id string) string
	Ping(ctx context.Context) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, digest string) (bool, error)
	Delete(ctx context.Context, digest string) error
}

// Services bundles the domain services mounted under /api/v1.
type Services struct {
	Auth         auth.Service
	Customers    customers.Service
	Mandates     mandates.Service
	Payments     payments.Service
	PaymentGuard controllers.PaymentTrigger
	Dashboard    dashboard.Service
	Weekly       controllers.WeeklyRunner
	Webhooks     webhookcontrollers.PhonePeWebhookService
	WebhookGuard webhookGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store RedisStore,
	sessions session.AccessSessionChecker,
	registry prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["database"] = dbP
	}
	if store != nil {
		deps["redis"] = store
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	var (
		rateStore interface {
			IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
			RateLimitKey(policy, scope, id string) string
		}
		idemStore pkgredis.IdempotencyStore
	)
	if store != nil {
		rateStore = store
		idemStore = store
	}
	idempotent := middleware.Idempotency(idemStore, logg)
	authenticated := middleware.Auth(cfg.JWT, sessions, logg)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.LoginRateLimit(middleware.NewLoginRateLimitPolicy(cfg.RateLimit), rateStore, logg)).
			Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.With(authenticated).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		authz := phonepewebhook.NewAuthorizer(cfg.PhonePe.WebhookUsername, cfg.PhonePe.WebhookPassword)
		r.Post("/phonepe", webhookcontrollers.PhonePeWebhook(svc.Webhooks, authz, svc.WebhookGuard, logg))
	})

	r.Route("/api/v1/cron", func(r chi.Router) {
		r.Use(middleware.CronSecret(cfg.Cron.Secret, logg))
		r.Get("/weekly-payments", controllers.CronWeeklyPayments(svc.Weekly, logg))
		r.Post("/weekly-payments", controllers.CronWeeklyPayments(svc.Weekly, logg))
		if !cfg.App.IsProd() {
			r.Post("/test-weekly-payments", controllers.CronTestWeeklyPayments(svc.Weekly, logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticated)
		r.Use(middleware.RequireRole(logg, pkgAuth.RoleAdmin))

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.CustomersList(svc.Customers, logg))
			r.Post("/", controllers.CustomersCreate(svc.Customers, logg))
			r.Patch("/{id}", controllers.CustomersPatch(svc.Customers, logg))
		})

		r.Route("/mandates", func(r chi.Router) {
			r.Get("/", controllers.MandatesList(svc.Mandates, logg))
			r.With(idempotent).Post("/", controllers.MandatesCreate(svc.Mandates, logg))
			r.Get("/{subscriptionId}/status", controllers.MandatesStatus(svc.Mandates, logg))
			r.With(idempotent).Post("/{subscriptionId}/cancel", controllers.MandatesCancel(svc.Mandates, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", controllers.PaymentsList(svc.Payments, logg))
			r.With(idempotent).Post("/weekly-debit/{mandateId}", controllers.PaymentsWeeklyDebit(svc.PaymentGuard, nil, logg))
			r.With(idempotent).Post("/{merchantOrderId}/execute", controllers.PaymentsExecute(svc.Payments, logg))
		})

		r.Get("/dashboard/stats", controllers.DashboardStats(svc.Dashboard, logg))
	})

	return r
}
