package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/config"
	amqpdelivery "github.com/Harsh-BH/Sentinel/judge/internal/delivery/amqp"
	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/judge"
	"github.com/Harsh-BH/Sentinel/judge/internal/language"
	"github.com/Harsh-BH/Sentinel/judge/internal/metrics"
	"github.com/Harsh-BH/Sentinel/judge/internal/pool"
	"github.com/Harsh-BH/Sentinel/judge/internal/registry"
	"github.com/Harsh-BH/Sentinel/judge/internal/repository/postgres"
	redisrepo "github.com/Harsh-BH/Sentinel/judge/internal/repository/redis"
	"github.com/Harsh-BH/Sentinel/judge/internal/sandbox"
	"github.com/Harsh-BH/Sentinel/judge/internal/usecase"
	"github.com/Harsh-BH/Sentinel/judge/internal/workspace"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Sentinel Judge")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Initialize repositories
	submissionRepo := postgres.NewPostgresSubmissionRepository(dbPool)
	problemRepo := redisrepo.NewProblemCache(redisClient, postgres.NewPostgresProblemRepository(dbPool), cfg.Judge.ProblemCacheTTL, logger)
	idempotencyStore := redisrepo.NewRedisIdempotencyStore(redisClient)

	// Initialize sandbox
	runner := newRunner(cfg, logger)

	reg := registry.New(runner, language.Builtin(language.Options{
		DefaultImage: cfg.Sandbox.Image,
		Images:       cfg.Sandbox.Images,
		Flags:        cfg.Judge.Flags,
	})...)
	checkToolchains(ctx, reg, logger)

	workspaces := workspace.NewManager(afero.NewOsFs(), cfg.Judge.WorkspaceDir)
	orchestrator := judge.NewOrchestrator(reg, runner, workspaces, judge.Options{
		CompileTimeout:    cfg.Judge.CompileTimeout,
		CompileMemoryMB:   cfg.Judge.CompileMemoryMB,
		PresentationError: cfg.Judge.PresentationError,
	}, logger)

	// Verdict events
	publisher, err := amqpdelivery.NewVerdictPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize verdict publisher", zap.Error(err))
	}

	// Initialize use case
	judgeUC := usecase.NewJudgeSubmissionUsecase(submissionRepo, problemRepo, idempotencyStore, publisher, orchestrator, logger)

	// Create buffered job channel
	jobsChan := make(chan *domain.JudgeJobMessage, cfg.Worker.PoolSize)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.Worker.PoolSize, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	logger.Info("Connected to RabbitMQ")

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, judgeUC, logger)
	workerPool.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down judge...")
	cancel()

	// Wait for workers to finish in-flight jobs
	workerPool.Stop()

	if err := consumer.Close(); err != nil {
		logger.Warn("Failed to close AMQP consumer", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("Failed to close verdict publisher", zap.Error(err))
	}

	logger.Info("Judge stopped")
}

func newRunner(cfg *config.Config, logger *zap.Logger) sandbox.Runner {
	maxOutput := cfg.Sandbox.MaxOutputKB * 1024
	if cfg.Sandbox.Backend == config.BackendNsjail {
		logger.Info("Using nsjail sandbox", zap.String("path", cfg.Sandbox.NsjailPath))
		return sandbox.NewNsjailRunner(sandbox.NsjailOptions{
			NsjailPath:     cfg.Sandbox.NsjailPath,
			ConfigDir:      cfg.Sandbox.NsjailConfigDir,
			CgroupRoot:     cfg.Sandbox.NsjailCgroup,
			CPUs:           cfg.Sandbox.CPUs,
			PidsLimit:      cfg.Sandbox.PidsLimit,
			MaxOutputBytes: maxOutput,
		}, logger)
	}
	logger.Info("Using docker sandbox", zap.String("path", cfg.Sandbox.DockerPath))
	return sandbox.NewDockerRunner(sandbox.DockerOptions{
		DockerPath:     cfg.Sandbox.DockerPath,
		CPUs:           cfg.Sandbox.CPUs,
		PidsLimit:      cfg.Sandbox.PidsLimit,
		MaxOutputBytes: maxOutput,
		StartupGrace:   cfg.Sandbox.StartupGrace,
	}, logger)
}

// checkToolchains probes every language once at startup. Missing toolchains
// are logged, not fatal: submissions in those languages fail individually.
func checkToolchains(ctx context.Context, reg *registry.Registry, logger *zap.Logger) {
	for _, a := range reg.CheckAll(ctx) {
		lang := string(a.Language)
		if !a.Available {
			metrics.ToolchainAvailable.WithLabelValues(lang).Set(0)
			logger.Warn("Toolchain unavailable", zap.String("language", lang), zap.Error(a.Err))
			continue
		}
		metrics.ToolchainAvailable.WithLabelValues(lang).Set(1)
		logger.Info("Toolchain available", zap.String("language", lang))
	}
}
