// Package app assembles the services shared by the api and cron-worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bikerent-backend/internal/auth"
	"github.com/angelmondragon/bikerent-backend/internal/customers"
	"github.com/angelmondragon/bikerent-backend/internal/dashboard"
	"github.com/angelmondragon/bikerent-backend/internal/mandates"
	"github.com/angelmondragon/bikerent-backend/internal/notifications"
	"github.com/angelmondragon/bikerent-backend/internal/payments"
	"github.com/angelmondragon/bikerent-backend/internal/schedulers/weekly"
	"github.com/angelmondragon/bikerent-backend/internal/tokencache"
	phonepewebhook "github.com/angelmondragon/bikerent-backend/internal/webhooks/phonepe"
	"github.com/angelmondragon/bikerent-backend/pkg/auth/session"
	"github.com/angelmondragon/bikerent-backend/pkg/config"
	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
	"github.com/angelmondragon/bikerent-backend/pkg/phonepe"
	"github.com/angelmondragon/bikerent-backend/pkg/redis"
)

// App holds the wired services. Close releases the db and redis pools.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Location *time.Location

	PaymentMetrics *metrics.PaymentMetrics

	Sessions     *session.Manager
	Auth         auth.Service
	Customers    customers.Service
	Mandates     mandates.Service
	MandateRepo  *mandates.Repository
	Payments     payments.Service
	PaymentGuard *payments.Guard
	Dashboard    dashboard.Service
	Weekly       *weekly.Service
	Webhooks     *phonepewebhook.Service
	WebhookGuard *phonepewebhook.IdempotencyGuard
}

// New wires every service from cfg. dbClient and redisClient are owned by the
// caller until New succeeds, after which App.Close releases them.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*App, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Location:       loc,
		PaymentMetrics: metrics.NewPaymentMetrics(reg),
	}

	processor, err := phonepe.NewClient(cfg.PhonePe, a.PaymentMetrics)
	if err != nil {
		return nil, fmt.Errorf("phonepe client: %w", err)
	}
	tokens, err := tokencache.NewCache(tokencache.CacheParams{
		Store:   tokencache.NewGormStore(dbClient.DB()),
		Fetcher: processor,
		Logger:  logg,
		Skew:    cfg.PhonePe.TokenSkew,
	})
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}

	if a.Sessions, err = session.NewManager(redisClient, cfg.JWT); err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}
	verifier, err := auth.NewConfigVerifier(cfg.Admin)
	if err != nil {
		return nil, fmt.Errorf("admin verifier: %w", err)
	}
	if a.Auth, err = auth.NewService(auth.ServiceParams{
		Verifier:       verifier,
		SessionManager: a.Sessions,
		JWTConfig:      cfg.JWT,
	}); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	customerRepo := customers.NewRepository(dbClient.DB())
	if a.Customers, err = customers.NewService(customerRepo); err != nil {
		return nil, fmt.Errorf("customer service: %w", err)
	}

	var mailer notifications.Mailer
	if cfg.FeatureFlags.SendMandateEmail && cfg.SMTP.Enabled() {
		smtpMailer, err := notifications.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("smtp mailer: %w", err)
		}
		mailer = smtpMailer
	}

	a.MandateRepo = mandates.NewRepository(dbClient.DB())
	if a.Mandates, err = mandates.NewService(mandates.ServiceParams{
		Repo:      a.MandateRepo,
		Customers: customerRepo,
		Processor: processor,
		Tokens:    tokens,
		Mailer:    mailer,
		SendEmail: mailer != nil,
		Logger:    logg,
		Location:  loc,
	}); err != nil {
		return nil, fmt.Errorf("mandate service: %w", err)
	}

	paymentRepo := payments.NewRepository(dbClient.DB())
	if a.Payments, err = payments.NewService(payments.ServiceParams{
		Repo:      paymentRepo,
		Mandates:  a.MandateRepo,
		Processor: processor,
		Tokens:    tokens,
		Tx:        dbClient,
		Logger:    logg,
		Location:  loc,
	}); err != nil {
		return nil, fmt.Errorf("payment service: %w", err)
	}
	if a.PaymentGuard, err = payments.NewGuard(a.Payments, a.PaymentMetrics); err != nil {
		return nil, fmt.Errorf("payment guard: %w", err)
	}

	if a.Dashboard, err = dashboard.NewService(dashboard.ServiceParams{
		Repo:     dashboard.NewRepository(dbClient.DB()),
		Location: loc,
	}); err != nil {
		return nil, fmt.Errorf("dashboard service: %w", err)
	}

	if a.Weekly, err = weekly.NewService(weekly.ServiceParams{
		Logger:   logg,
		Repo:     weekly.NewRepository(dbClient.DB()),
		Payments: a.Payments,
		Guard:    a.PaymentGuard,
		Metrics:  a.PaymentMetrics,
		Location: loc,
	}); err != nil {
		return nil, fmt.Errorf("weekly scheduler: %w", err)
	}

	if a.Webhooks, err = phonepewebhook.NewService(phonepewebhook.ServiceParams{
		Mandates:          a.MandateRepo,
		Payments:          paymentRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           a.PaymentMetrics,
	}); err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
	}
	if a.WebhookGuard, err = phonepewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookDedupeTTL); err != nil {
		return nil, fmt.Errorf("webhook guard: %w", err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"phonepe_env": cfg.PhonePe.Environment(),
		"time_zone":   loc.String(),
		"mailer":      mailer != nil,
	}), "services wired")
	return a, nil
}

// Close releases the pooled connections.
func (a *App) Close(ctx context.Context) {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error(ctx, "error closing redis", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error(ctx, "error closing database", err)
		}
	}
}
