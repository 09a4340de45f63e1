package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/onurcolak/future-message-service/environments"
	"github.com/onurcolak/future-message-service/handlers"
	"github.com/onurcolak/future-message-service/internal/middlewares"
	"github.com/onurcolak/future-message-service/internal/repository"
	"github.com/onurcolak/future-message-service/internal/scheduler"
	"github.com/onurcolak/future-message-service/internal/service"
	"github.com/onurcolak/future-message-service/pkg/database"
	"github.com/onurcolak/future-message-service/pkg/kommo"
	"github.com/onurcolak/future-message-service/pkg/logger"
	"github.com/onurcolak/future-message-service/pkg/redis"
	"github.com/onurcolak/future-message-service/pkg/validator"
	"github.com/onurcolak/future-message-service/pkg/webhook"
	"github.com/onurcolak/future-message-service/routes"

	_ "github.com/onurcolak/future-message-service/docs" // swagger docs
)

// store is what the engine persists through plus the health probe.
type store interface {
	service.BlobStore
	Ping(ctx context.Context) error
}

// @title Future Message Service API
// @version 1.0
// @description Schedules messages for CRM leads and contacts and hands them to the host automation when due
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email onur.colak@useinsider.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	// Load config
	cfg := environments.Load()

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// Hard-fail if required secrets are missing
	if cfg.Auth.MessagesAPIKey == "" {
		logger.Fatalf("MESSAGES_API_KEY is required but not set")
	}
	if cfg.Auth.SchedulerAPIKey == "" {
		logger.Fatalf("SCHEDULER_API_KEY is required but not set")
	}
	if cfg.Auth.AutomationAPIKey == "" {
		logger.Fatalf("AUTOMATION_API_KEY is required but not set")
	}

	logger.Infof("Starting Future Message Service...")

	messageStore, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}

	// Field sync is optional; a nil syncer leaves host fields untouched.
	var (
		syncer      service.FieldSyncer
		kommoClient *kommo.Client
	)
	if cfg.Kommo.Enabled() {
		kommoClient = kommo.NewClient(cfg.Kommo)
		syncer = kommoClient
		logger.Infof("Kommo field sync configured: %s", kommoClient.GetURL())
	} else {
		logger.Warnf("KOMMO_BASE_URL or KOMMO_ACCESS_TOKEN not set, field sync disabled")
	}

	messageService := service.NewMessageService(messageStore, syncer, service.Config{
		StoreKey:         cfg.Store.Key,
		StoreTimeout:     cfg.Store.Timeout,
		SyncTimeout:      cfg.Kommo.Timeout,
		MaxContentLength: cfg.Message.MaxContentLength,
	})

	if err := messageService.Load(context.Background()); err != nil {
		logger.Fatalf("Failed to load scheduled messages: %v", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sched *scheduler.Scheduler
	if cfg.Alert.WebhookURL != "" {
		alertClient := webhook.NewAlertClient(cfg.Alert)
		logger.Infof("Alert webhook configured: %s", alertClient.GetURL())
		sched = scheduler.NewScheduler(messageService, alertClient, cfg.Scheduler.Interval, cfg.Alert.IterationCount)
	} else {
		sched = scheduler.NewScheduler(messageService, nil, cfg.Scheduler.Interval, cfg.Alert.IterationCount)
	}

	// Initialize handlers
	var healthHandler *handlers.HealthHandler
	if kommoClient != nil {
		healthHandler = handlers.NewHealthHandler(messageStore, cfg.Store.Backend, kommoClient)
	} else {
		healthHandler = handlers.NewHealthHandler(messageStore, cfg.Store.Backend, nil)
	}
	messageHandler := handlers.NewMessageHandler(messageService)
	automationHandler := handlers.NewAutomationHandler(messageService)
	schedulerHandler := handlers.NewSchedulerHandler(sched, ctx, cfg)

	if cfg.Scheduler.AutoStart {
		logger.Infof("Auto-starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			logger.Warnf("Failed to auto-start scheduler: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			middlewares.APIKeyHeader,
			middlewares.ActorIDHeader,
			middlewares.ActorNameHeader,
		},
	}))

	routes.RegisterRoutes(e, healthHandler, messageHandler, automationHandler, schedulerHandler, cfg)

	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		logger.Infof("Swagger docs available at http://localhost%s/swagger/index.html", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Stop the scheduler before cancelling so an in-flight due check can
	// finish its write-back.
	if sched.IsRunning() {
		logger.Infof("Stopping scheduler...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()

		done := make(chan error, 1)
		go func() {
			done <- sched.Stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Errorf("Error stopping scheduler: %v", err)
			} else {
				logger.Infof("Scheduler stopped successfully")
			}
		case <-stopCtx.Done():
			logger.Warnf("Scheduler stop timeout, forcing shutdown")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	logger.Infof("Closing %s store...", cfg.Store.Backend)
	if err := closeStore(); err != nil {
		logger.Errorf("Error closing store: %v", err)
	}

	logger.Infof("Graceful shutdown completed")
}

// openStore connects the persistence adapter selected by STORE_BACKEND and
// returns it with its close function.
func openStore(cfg *environments.Config) (store, func() error, error) {
	switch cfg.Store.Backend {
	case "mysql":
		db, err := database.NewMySQLDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repository.NewSettingsRepository(db), db.Close, nil

	case "valkey", "redis":
		client, err := redis.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil

	case "memory":
		logger.Warnf("Using in-memory store, scheduled messages will not survive a restart")
		return repository.NewMemoryRepository(), func() error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q (expected mysql, valkey or memory)", cfg.Store.Backend)
}
