package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/feedback-pipeline/internal/adapter/api"
	"github.com/user/feedback-pipeline/internal/adapter/api/middleware"
	"github.com/user/feedback-pipeline/internal/adapter/metrics"
	"github.com/user/feedback-pipeline/internal/adapter/queue"
	"github.com/user/feedback-pipeline/internal/adapter/redact"
	"github.com/user/feedback-pipeline/internal/adapter/repository/postgres"
	"github.com/user/feedback-pipeline/internal/pkg/config"
	"github.com/user/feedback-pipeline/internal/pkg/logger"
	"github.com/user/feedback-pipeline/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.NewPipelineMetrics()

	// --- Start Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: adminMux,
	}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// --- Initialize Repositories ---
	tenantRepo := postgres.NewTenantRepository(db, log, cfg.TenantCacheTTL)
	feedbackRepo := postgres.NewFeedbackRepository(db, log)
	artifactRepo := postgres.NewArtifactRepository(db, log)
	auditRepo := postgres.NewAuditRepository(db, log)
	queueRepo := queue.New(redisClient, log, int64(cfg.QueueCapacity), cfg.QueueRatePerSec, cfg.QueueBurst)

	// --- Initialize Use Cases ---
	redactor := redact.NewRedactor(redact.DefaultRuleSet(), log)
	gate := usecase.NewRBACGate(auditRepo, m, log)

	submitUC := usecase.NewSubmitFeedbackUseCase(tenantRepo, feedbackRepo, queueRepo, auditRepo, redactor, m, log)
	reviewUC := usecase.NewReviewUseCase(tenantRepo, queueRepo, artifactRepo, auditRepo, feedbackRepo, gate, log)
	approvalUC := usecase.NewApprovalUseCase(artifactRepo, auditRepo, gate, m, log)
	replayUC := usecase.NewReplayUseCase(auditRepo, gate, log)

	// --- Initialize API Server ---
	router := api.NewRouter(cfg, log, submitUC, reviewUC, approvalUC, replayUC, gate)
	apiServer := &http.Server{
		Addr:         cfg.APIServerAddr,
		Handler:      middleware.Logging(log)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		log.Info("starting feedback api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("feedback api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	log.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown failed", "error", err)
	}

	log.Info("servers shut down gracefully")
}
