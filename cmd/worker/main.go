package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/feedback-pipeline/internal/adapter/cluster"
	"github.com/user/feedback-pipeline/internal/adapter/generation"
	"github.com/user/feedback-pipeline/internal/adapter/metrics"
	"github.com/user/feedback-pipeline/internal/adapter/queue"
	"github.com/user/feedback-pipeline/internal/adapter/redact"
	"github.com/user/feedback-pipeline/internal/adapter/repository/postgres"
	"github.com/user/feedback-pipeline/internal/adapter/safety"
	"github.com/user/feedback-pipeline/internal/pkg/config"
	"github.com/user/feedback-pipeline/internal/pkg/logger"
	"github.com/user/feedback-pipeline/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting pipeline worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewPipelineMetrics()

	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminServer := &http.Server{Addr: cfg.AdminServerAddr, Handler: adminMux}
	go func() {
		log.Info("starting worker metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("worker metrics server failed", "error", err)
		}
	}()

	// --- Database and Redis Connections ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	// --- Initialize Repositories ---
	tenantRepo := postgres.NewTenantRepository(db, log, cfg.TenantCacheTTL)
	artifactRepo := postgres.NewArtifactRepository(db, log)
	auditRepo := postgres.NewAuditRepository(db, log)
	queueRepo := queue.New(redisClient, log, int64(cfg.QueueCapacity), cfg.QueueRatePerSec, cfg.QueueBurst)

	// --- Generation Capability ---
	var generator generation.Generator
	if cfg.AnthropicAPIKey != "" {
		generator = generation.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.GenerationModel)
		log.Info("using anthropic generation capability", "model", cfg.GenerationModel)
	} else {
		// Without an API key the worker still runs end to end; clusters are
		// stored without generated labels and no recommendations are drafted.
		generator = &generation.StubGenerator{Default: ""}
		log.Warn("no generation api key configured, running with stub generator")
	}
	retryPolicy := generation.RetryPolicy{
		MaxAttempts: cfg.GenerationRetries,
		Timeout:     cfg.GenerationTimeout,
		BaseBackoff: time.Second,
	}

	rules := redact.DefaultRuleSet()
	blocklist := safety.DefaultBlocklist
	if cfg.SafetyBlocklist != "" {
		for _, word := range strings.Split(cfg.SafetyBlocklist, ",") {
			if word = strings.TrimSpace(word); word != "" {
				blocklist = append(blocklist, strings.ToLower(word))
			}
		}
	}
	guard := safety.NewGuard(rules, blocklist, 4000, log)

	processUC := usecase.NewProcessWindowUseCase(
		tenantRepo, queueRepo, artifactRepo, auditRepo,
		cluster.NewClusterer(cfg.ClusterThreshold),
		generator, retryPolicy, guard,
		m, log, cfg.WindowBatchSize, cfg.MaxParallelGenerations, cfg.RecommendationTTL,
	)
	gate := usecase.NewRBACGate(auditRepo, m, log)
	approvalUC := usecase.NewApprovalUseCase(artifactRepo, auditRepo, gate, m, log)

	windowTicker := time.NewTicker(cfg.WindowInterval)
	defer windowTicker.Stop()
	expiryTicker := time.NewTicker(cfg.ExpiryInterval)
	defer expiryTicker.Stop()

	log.Info("pipeline worker started",
		"window_interval", cfg.WindowInterval, "expiry_interval", cfg.ExpiryInterval)

Loop:
	for {
		select {
		case <-windowTicker.C:
			if err := processUC.ProcessAll(ctx); err != nil {
				log.Error("processing window failed", "error", err)
			}
		case <-expiryTicker.C:
			if _, err := approvalUC.ExpireSweep(ctx, time.Now().UTC(), cfg.RecommendationTTL); err != nil {
				log.Error("expiry sweep failed", "error", err)
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down worker loop")
			break Loop
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("worker metrics server shutdown failed", "error", err)
	}

	log.Info("pipeline worker shut down gracefully")
}
