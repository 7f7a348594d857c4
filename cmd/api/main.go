package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/bikerent-backend/api"
	"github.com/angelmondragon/bikerent-backend/api/routes"
	"github.com/angelmondragon/bikerent-backend/internal/app"
	"github.com/angelmondragon/bikerent-backend/pkg/config"
	"github.com/angelmondragon/bikerent-backend/pkg/db"
	"github.com/angelmondragon/bikerent-backend/pkg/instance"
	"github.com/angelmondragon/bikerent-backend/pkg/logger"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
	"github.com/angelmondragon/bikerent-backend/pkg/migrate"
	"github.com/angelmondragon/bikerent-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := app.New(context.Background(), cfg, logg, dbClient, redisClient, reg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	defer services.Close(context.Background())

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		services.Sessions,
		reg,
		metrics.NewHTTPMetrics(reg),
		routes.Services{
			Auth:         services.Auth,
			Customers:    services.Customers,
			Mandates:     services.Mandates,
			Payments:     services.Payments,
			PaymentGuard: services.PaymentGuard,
			Dashboard:    services.Dashboard,
			Weekly:       services.Weekly,
			Webhooks:     services.Webhooks,
			WebhookGuard: services.WebhookGuard,
		},
	)

	if err := api.Serve(ctx, api.NewServer(addr, handler), logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		stop()
		services.Close(context.Background())
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
