package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bizflow/bizflow/pkg/ai"
	"github.com/bizflow/bizflow/pkg/apiserver"
	"github.com/bizflow/bizflow/pkg/auth"
	"github.com/bizflow/bizflow/pkg/config"
	"github.com/bizflow/bizflow/pkg/eventbus"
	"github.com/bizflow/bizflow/pkg/handler"
	"github.com/bizflow/bizflow/pkg/mailer"
	"github.com/bizflow/bizflow/pkg/registry"
	"github.com/bizflow/bizflow/pkg/runner"
	"github.com/bizflow/bizflow/pkg/scheduler"
	"github.com/bizflow/bizflow/pkg/store/postgres"
	redisclient "github.com/bizflow/bizflow/pkg/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	workflows := postgres.NewWorkflowRepository(db.DB())
	executions := postgres.NewExecutionRepository(db.DB())
	analytics := postgres.NewAnalyticsRepository(db.DB())

	var bus *eventbus.Bus
	if len(cfg.Redis.Addresses) > 0 {
		redis, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()
		bus = eventbus.NewBus(redis.Client())

		busCtx, busCancel := context.WithCancel(context.Background())
		defer busCancel()
		go func() {
			for event := range bus.Subscribe(busCtx, eventbus.ChannelExecution, eventbus.ChannelWorkflow) {
				logger.Debug("Bus event",
					zap.String("type", event.Type),
					zap.ByteString("data", event.Data))
			}
		}()
	}

	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		smtp, err := mailer.NewSMTPMailer(&cfg.SMTP, logger)
		if err != nil {
			logger.Fatal("Failed to configure SMTP", zap.Error(err))
		}
		mail = smtp
	}

	handlers := handler.NewBuiltinRegistry(handler.Deps{
		Analytics: analytics,
		Analyzer:  ai.NewClient(&cfg.AI, logger),
		Mailer:    mail,
		Logger:    logger,
	})

	runnerOpts := []runner.Option{}
	if cfg.Engine.HandlerTimeout > 0 {
		runnerOpts = append(runnerOpts, runner.WithHandlerTimeout(cfg.Engine.HandlerTimeout))
	}
	if bus != nil {
		runnerOpts = append(runnerOpts, runner.WithBus(bus))
	}
	run := runner.New(executions, workflows, handlers, logger, runnerOpts...)

	sched := scheduler.New(workflows, run, logger)
	sched.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sched.Reconcile(ctx); err != nil {
		logger.Error("Failed to schedule stored workflows", zap.Error(err))
	}
	cancel()

	registryOpts := []registry.Option{registry.WithHistoryLimit(cfg.Engine.HistoryLimit)}
	if bus != nil {
		registryOpts = append(registryOpts, registry.WithBus(bus))
	}
	service := registry.NewService(workflows, executions, sched, run, logger, registryOpts...)
	tokens := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	server := apiserver.NewServer(service, tokens, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	go func() {
		logger.Info("Starting API server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Starting metrics server", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server forced to shutdown", zap.Error(err))
	}

	sched.Stop(shutdownCtx)
	run.Wait()

	logger.Info("Shutdown complete")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if cfg.Logging.Format == "console" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
