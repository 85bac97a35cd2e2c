package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/terroirco/farmlot-backend/api/routes"
	"github.com/terroirco/farmlot-backend/internal/catalog"
	"github.com/terroirco/farmlot-backend/internal/lots"
	"github.com/terroirco/farmlot-backend/internal/opensales"
	"github.com/terroirco/farmlot-backend/internal/reservations"
	"github.com/terroirco/farmlot-backend/internal/users"
	"github.com/terroirco/farmlot-backend/pkg/config"
	"github.com/terroirco/farmlot-backend/pkg/db"
	"github.com/terroirco/farmlot-backend/pkg/logger"
	"github.com/terroirco/farmlot-backend/pkg/metrics"
	"github.com/terroirco/farmlot-backend/pkg/migrate"
	"github.com/terroirco/farmlot-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	allocMetrics := metrics.NewAllocationMetrics(promRegistry)
	reqMetrics := metrics.NewRequestMetrics(promRegistry)

	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	lotRepo := lots.NewRepository(gormDB)
	reservationRepo := reservations.NewRepository(gormDB)
	openSaleRepo := opensales.NewRepository(gormDB)
	statsRepo := lots.NewStatsRepository(gormDB)

	userService, err := users.NewService(userRepo, cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}
	catalogService, err := catalog.NewService(catalogRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}
	lotService, err := lots.NewService(dbClient, lotRepo, catalogService, allocMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create lot service", err)
		os.Exit(1)
	}
	reservationService, err := reservations.NewService(
		dbClient, reservationRepo, lotRepo, allocMetrics, logg, cfg.Reservations.MaxLines)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}
	openSaleService, err := opensales.NewService(
		dbClient, openSaleRepo, lotRepo, allocMetrics, logg, cfg.Reservations.MaxLines)
	if err != nil {
		logg.Error(context.Background(), "failed to create open sale service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			reqMetrics,
			userService,
			catalogService,
			lotService,
			reservationService,
			openSaleService,
			statsRepo,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}
}
