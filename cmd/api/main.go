package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/partnerhub/partnerhub-backend/api/routes"
	"github.com/partnerhub/partnerhub-backend/internal/hierarchy"
	"github.com/partnerhub/partnerhub-backend/internal/partners"
	"github.com/partnerhub/partnerhub-backend/internal/points"
	"github.com/partnerhub/partnerhub-backend/internal/tasks"
	"github.com/partnerhub/partnerhub-backend/pkg/config"
	"github.com/partnerhub/partnerhub-backend/pkg/db"
	"github.com/partnerhub/partnerhub-backend/pkg/logger"
	"github.com/partnerhub/partnerhub-backend/pkg/metrics"
	"github.com/partnerhub/partnerhub-backend/pkg/migrate"
	"github.com/partnerhub/partnerhub-backend/pkg/redis"
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

	logg = logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

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
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := tasks.NewRegistry(tasks.DefaultConfigs())
	if err != nil {
		logg.Error(context.Background(), "failed to build task registry", err)
		os.Exit(1)
	}

	completionsRepo := tasks.NewRepository(dbClient.DB())
	pointsService, err := points.NewService(completionsRepo, registry, redisClient, logg, cfg.Points.CacheTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create points service", err)
		os.Exit(1)
	}

	metricsRegistry := prometheus.NewRegistry()
	taskMetrics := metrics.NewTaskMetrics(metricsRegistry)

	taskEngine, err := tasks.NewEngine(registry, completionsRepo, pointsService, logg, taskMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create task engine", err)
		os.Exit(1)
	}

	partnersRepo := partners.NewRepository(dbClient.DB())
	hierarchyService, err := hierarchy.NewService(hierarchy.NewRepository(dbClient.DB()), partnersRepo, dbClient, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create hierarchy service", err)
		os.Exit(1)
	}

	partnerService, err := partners.NewService(partnersRepo, hierarchyService, taskEngine, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create partner service", err)
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
			partnerService,
			hierarchyService,
			pointsService,
			taskEngine,
			metricsRegistry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
