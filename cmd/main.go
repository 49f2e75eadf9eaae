package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/vend-service/vend_service/internal/adapters/telegram"
	"github.com/vend-service/vend_service/internal/adapters/trongrid"
	"github.com/vend-service/vend_service/internal/adapters/tronscan"
	"github.com/vend-service/vend_service/internal/api/routes"
	"github.com/vend-service/vend_service/internal/domain/services/orders"
	"github.com/vend-service/vend_service/internal/domain/services/reconciliation"
	"github.com/vend-service/vend_service/internal/domain/services/transfers"
	"github.com/vend-service/vend_service/internal/infrastructure/config"
	"github.com/vend-service/vend_service/internal/infrastructure/repositories"
	"github.com/vend-service/vend_service/pkg/graceful"
	"github.com/vend-service/vend_service/pkg/logger"
	"github.com/vend-service/vend_service/pkg/metrics"
	"github.com/vend-service/vend_service/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Snapshot store fails fast if the state directory is not writable.
	snapshots, err := repositories.NewSnapshotRepository(cfg.Snapshot.Path)
	if err != nil {
		log.Fatal("Snapshot path not usable", "path", cfg.Snapshot.Path, "error", err)
	}

	unitPrice, err := decimal.NewFromString(cfg.Payment.UnitPrice)
	if err != nil {
		log.Fatal("Invalid unit price", "value", cfg.Payment.UnitPrice, "error", err)
	}
	offsetStep, err := decimal.NewFromString(cfg.Payment.OffsetStep)
	if err != nil {
		log.Fatal("Invalid offset step", "value", cfg.Payment.OffsetStep, "error", err)
	}
	tolerance, err := decimal.NewFromString(cfg.Payment.Tolerance)
	if err != nil {
		log.Fatal("Invalid tolerance", "value", cfg.Payment.Tolerance, "error", err)
	}

	orderService := orders.NewService(orders.Config{
		UnitSize:   cfg.Payment.UnitSize,
		UnitPrice:  unitPrice,
		OffsetStep: offsetStep,
	}, log)

	// Explorer sources, primary first.
	primary := tronscan.NewClient(tronscan.Config{
		BaseURL:  cfg.Explorer.TronscanBaseURL,
		Timeout:  cfg.Explorer.RequestTimeoutDuration(),
		PageSize: cfg.Explorer.PageSize,
		Address:  cfg.Payment.ReceivingAddress,
		Contract: cfg.Payment.TokenContract,
	}, log)
	fallback := trongrid.NewClient(trongrid.Config{
		BaseURL:  cfg.Explorer.TrongridBaseURL,
		APIKey:   cfg.Explorer.TrongridAPIKey,
		Timeout:  cfg.Explorer.RequestTimeoutDuration(),
		PageSize: cfg.Explorer.PageSize,
		Address:  cfg.Payment.ReceivingAddress,
		Contract: cfg.Payment.TokenContract,
	}, log)
	feed := transfers.NewPoller([]transfers.Source{primary, fallback}, log, m)

	notifier := telegram.NewClient(telegram.Config{
		BotToken:       cfg.Telegram.BotToken,
		BaseURL:        cfg.Telegram.BaseURL,
		OperatorChatID: cfg.Telegram.OperatorChatID,
	}, log)

	engine := reconciliation.NewService(orderService, feed, notifier, snapshots, log, m, reconciliation.Config{
		ReceivingAddress: cfg.Payment.ReceivingAddress,
		TokenContract:    cfg.Payment.TokenContract,
		Tolerance:        tolerance,
		OrderTimeout:     cfg.Payment.OrderTimeoutDuration(),
		ProcessedCap:     cfg.Payment.ProcessedCap,
		CandidateLimit:   cfg.Payment.CandidateLimit,
	})

	if err := engine.LoadState(); err != nil {
		log.Fatal("Failed to load engine state", "error", err)
	}

	scheduler := reconciliation.NewScheduler(engine, log, &reconciliation.SchedulerConfig{
		PollInterval: cfg.Explorer.PollIntervalDuration(),
	})
	if err := scheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start scheduler", "error", err)
	}

	router := routes.SetupRoutes(cfg, log, orderService, engine, scheduler, registry)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	shutdownManager := graceful.NewShutdownManager(server, log)
	shutdownManager.Register(scheduler)
	shutdownManager.WaitForShutdown()
}
