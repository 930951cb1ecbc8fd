package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/learnhub/assessment-engine/internal/capacity"
	"github.com/learnhub/assessment-engine/internal/config"
	"github.com/learnhub/assessment-engine/internal/events"
	"github.com/learnhub/assessment-engine/internal/handlers"
	"github.com/learnhub/assessment-engine/internal/models"
	"github.com/learnhub/assessment-engine/internal/repositories/postgres"
	"github.com/learnhub/assessment-engine/internal/services"
	"github.com/learnhub/assessment-engine/internal/telemetry"
	"github.com/learnhub/assessment-engine/internal/utils"
	"github.com/learnhub/assessment-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&models.AssessmentDefinition{},
		&models.Question{},
		&models.Option{},
		&models.Session{},
		&models.Answer{},
		&models.Attempt{},
	); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher, err := events.NewKafkaPublisher(events.PublisherConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("kafka publisher init failed", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	deps := services.Deps{
		Repo:      postgres.NewRepository(db),
		Capacity:  capacity.NewRedisAccountant(redisClient, cfg.CapacityPrefix, logger),
		Publisher: publisher,
		Logger:    logger,
		Validator: utils.NewValidator(),
		Metrics:   metrics,
	}
	manager := services.NewManager(deps)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := services.NewSweepService(deps, manager.Scoring, services.SweepConfig{
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
	})
	go sweeper.Run(sweepCtx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handlers.NewHandlerManager(manager, logger).SetupRoutes(router, logger, registry)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)
	<-shutdown

	logger.Info("shutting down")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
