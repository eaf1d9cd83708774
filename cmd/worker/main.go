// Package main provides the worker process entrypoint: it wires config,
// logging/metrics/tracing, the backend API client, the LLM Gateway, and the
// three named queue consumers (jd/resume/ranking), then blocks on
// SIGINT/SIGTERM for shutdown: stop the admin server, cancel the
// consumers' context (in-flight handlers included), close each worker pool
// in sequence, exit).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kreeda/resumatch/internal/adminserver"
	"github.com/kreeda/resumatch/internal/backend"
	"github.com/kreeda/resumatch/internal/config"
	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/handlers"
	"github.com/kreeda/resumatch/internal/jdpipeline"
	"github.com/kreeda/resumatch/internal/llmgateway"
	"github.com/kreeda/resumatch/internal/observability"
	"github.com/kreeda/resumatch/internal/queue"
	"github.com/kreeda/resumatch/internal/scoring"
	"github.com/kreeda/resumatch/internal/service/ratelimiter"
	"github.com/kreeda/resumatch/internal/stagepipeline"
	"github.com/kreeda/resumatch/internal/textextract"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	if overrides, err := config.LoadScoringWeights(cfg.ScoringWeightsPath); err != nil {
		slog.Error("failed to load scoring weights override", slog.Any("error", err))
		os.Exit(1)
	} else {
		for name, weight := range overrides {
			scoring.BaseCompositeWeights[name] = weight
		}
	}

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker",
		slog.String("env", cfg.AppEnv),
		slog.Int("jd_concurrency", cfg.JDConcurrency),
		slog.Int("resume_concurrency", cfg.ResumeConcurrency),
		slog.Int("ranking_concurrency", cfg.RankingConcurrency))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			slog.Error("failed to close redis client", slog.Any("error", err))
		}
	}()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Error("redis connection failed", slog.Any("error", err))
		os.Exit(1)
	}

	backendClient := backend.NewClient(cfg.BackendAPIURL, cfg.BackendAPIKey, 30*time.Second)
	resumeRepo := backend.NewResumeClient(backendClient)
	scoreRepo := backend.NewScoreClient(backendClient)

	limiter := ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
		cfg.ChatModel:       ratelimiter.NewBucketConfigFromPerMinute(cfg.ChatRequestsPerMinute),
		cfg.EmbeddingsModel: ratelimiter.NewBucketConfigFromPerMinute(cfg.EmbedRequestsPerMinute),
	})

	gateway, err := llmgateway.NewGatewayWithLimiter(cfg, limiter)
	if err != nil {
		slog.Error("failed to init LLM gateway", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			slog.Error("failed to close LLM gateway", slog.Any("error", err))
		}
	}()

	extractor := textextract.New(cfg.TextExtractorURL, cfg.TextExtractorTimeout)

	pusher := queue.NewProgressPusher(rdb)

	retryCfg := cfg.GetRetryConfig()
	baseRetry := domain.DefaultRetryConfig()
	retryConfig := domain.RetryConfig{
		MaxRetries:         retryCfg.MaxRetries,
		InitialDelay:       retryCfg.InitialDelay,
		MaxDelay:           retryCfg.MaxDelay,
		Multiplier:         retryCfg.Multiplier,
		Jitter:             retryCfg.Jitter,
		RetryableErrors:    baseRetry.RetryableErrors,
		NonRetryableErrors: baseRetry.NonRetryableErrors,
	}

	jdPipeline := jdpipeline.New(jdpipeline.Deps{
		JobRepo: backendClient,
		Writer:  backendClient,
		Gateway: gateway,
	})
	stagePipeline := stagepipeline.New(stagepipeline.Deps{
		UploadsRoot: cfg.UploadsRoot,
		Extractor:   extractor,
		Gateway:     gateway,
		JobRepo:     backendClient,
		ResumeRepo:  resumeRepo,
		ScoreRepo:   scoreRepo,
	})

	jdHandler := handlers.NewJDHandler(jdPipeline, pusher)
	resumeHandler := handlers.NewResumeHandler(stagePipeline, pusher).
		WithRankingFanOut(queue.NewDispatcher(rdb), scoreRepo)
	rankingHandler := handlers.NewRankingHandler(handlers.RankingDeps{
		JobRepo:    backendClient,
		ResumeRepo: resumeRepo,
		ScoreRepo:  scoreRepo,
		Gateway:    gateway,
		Pusher:     pusher,
	})

	// Three independently-concurrent worker pools, one per named queue
	// (jd=1, resume=16 configurable, ranking=2). MAX_WORKERS caps the
	// resume pool, the only one that fans out per candidate.
	resumeConcurrency := cfg.ResumeConcurrency
	if cfg.MaxWorkers > 0 && resumeConcurrency > cfg.MaxWorkers {
		resumeConcurrency = cfg.MaxWorkers
	}
	popTimeout := 5 * time.Second
	consumers := []*queue.Consumer{
		queue.NewConsumer(queue.NameJD, rdb, cfg.JDConcurrency, popTimeout, retryConfig, jdHandler.Handle),
		queue.NewConsumer(queue.NameResume, rdb, resumeConcurrency, popTimeout, retryConfig, resumeHandler.Handle),
		queue.NewConsumer(queue.NameRanking, rdb, cfg.RankingConcurrency, popTimeout, retryConfig, rankingHandler.Handle),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queueNames := []string{queue.NameJD, queue.NameResume, queue.NameRanking}
	queue.LogQueueCounts(ctx, rdb, queueNames)
	queue.StartDLQJanitor(ctx, rdb, queueNames, cfg.DLQMaxAge, cfg.DLQCleanupInterval)
	for _, c := range consumers {
		c.Start(ctx)
	}

	admin := adminserver.New(cfg, rdb)
	adminSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           admin,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server error", slog.Any("error", err))
		}
	}()

	slog.Info("worker started successfully, waiting for shutdown signal")
	slog.Info("send signal TERM or INT to terminate the process")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))

	// The drain timeout bounds only the admin server's shutdown. cancel()
	// then stops new pops and also cancels the context of every in-flight
	// handler; each worker pool is closed in sequence, and Close waits for
	// its workers to return with no time limit.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
	defer shutdownCancel()
	_ = adminSrv.Shutdown(shutdownCtx)

	cancel()
	for _, c := range consumers {
		if err := c.Close(); err != nil {
			slog.Error("consumer close error", slog.Any("error", err))
		}
	}

	slog.Info("worker stopped")
}
