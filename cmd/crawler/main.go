package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newsfeed/crawler-service/internal/adapter/chromedp_browser"
	"github.com/newsfeed/crawler-service/internal/adapter/llm"
	"github.com/newsfeed/crawler-service/internal/adapter/postgres"
	"github.com/newsfeed/crawler-service/internal/adapter/rabbitmq"
	redis_adapter "github.com/newsfeed/crawler-service/internal/adapter/redis"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/extractor"
	"github.com/newsfeed/crawler-service/internal/scheduler"
	"github.com/newsfeed/crawler-service/internal/usecase"
	"github.com/newsfeed/crawler-service/internal/worker"
	"github.com/newsfeed/crawler-service/pkg/config"
	"github.com/newsfeed/crawler-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 60 * time.Second

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("could not load config", zap.Error(err))
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		zap.NewExample().Fatal("could not build logger", zap.Error(err))
	}
	defer log.Sync() //nolint:errcheck
	log = log.With(zap.String("service", "crawler"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	if err := postgres.RunMigrations(cfg.PostgresURL("pgx5"), log.Named("migrate")); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	dbpool, err := postgres.NewPool(ctx, cfg.PostgresURL("postgres"))
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer dbpool.Close()
	log.Info("postgres connection pool established")

	rdb, err := redis_adapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("unable to connect to redis", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("redis connection established")

	queue, err := redis_adapter.NewStreamQueue(ctx, rdb, redis_adapter.QueueConfig{
		Prefix:            cfg.QueuePrefix,
		MaxLen:            cfg.QueueMaxLen,
		VisibilityTimeout: cfg.VisibilityTimeout,
	})
	if err != nil {
		log.Fatal("failed to create job queue", zap.Error(err))
	}
	dedup := redis_adapter.NewDedupRepo(rdb, cfg.DedupWindow)
	articles := postgres.NewArticleRepo(dbpool)
	deadLetters := postgres.NewDeadLetterRepo(dbpool)

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, log)
	if err != nil {
		log.Fatal("unable to connect to rabbitmq", zap.Error(err))
	}
	defer publisher.Close()

	// --- Extraction ---
	browser, err := chromedp_browser.NewChromedpBrowser(cfg.MaxBrowserTabs, chromedp_browser.NewUserAgentRotator(), log)
	if err != nil {
		log.Fatal("failed to start browser", zap.Error(err))
	}
	defer browser.Close()

	var ai *extractor.AIExtractor
	oracle, err := llm.NewAnthropicOracle(llm.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.AIMaxTokens,
		Timeout:   cfg.AIRequestTimeout,
		RateLimit: cfg.AIRateLimit,
		RateBurst: cfg.AIRateBurst,
	}, log)
	switch {
	case err == nil:
		ai = extractor.NewAIExtractor(oracle, cfg.AIMaxMarkupBytes, log)
	case errors.Is(err, entity.ErrOracleUnavailable):
		log.Warn("no AI oracle configured, structural extraction only",
			zap.Bool("readability_rescue", cfg.ReadabilityRescue))
	default:
		log.Fatal("failed to create AI oracle", zap.Error(err))
	}

	opts := extractor.Options{PageTimeout: cfg.PageLoadTimeout, ReadabilityRescue: cfg.ReadabilityRescue}
	var extractors []*extractor.SourceExtractor
	var sources []usecase.URLSource
	for _, src := range extractor.DefaultSources() {
		e := extractor.NewSourceExtractor(src, browser, ai, opts, log)
		extractors = append(extractors, e)
		sources = append(sources, e)
	}
	registry := extractor.NewRegistry(extractors...)

	// --- Use Cases ---
	discovery := usecase.NewDiscoveryUseCase(usecase.NewDiscoveryAggregator(sources, log), dedup, queue, log)
	crawl := usecase.NewCrawlUseCase(registry, articles, publisher, log)

	// --- Workers ---
	hostname, _ := os.Hostname()
	pool, err := worker.NewPool(worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		JobTimeout:   cfg.JobTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		BackoffBase:  cfg.BackoffBase,
		ConsumerName: hostname,
	}, queue, deadLetters, crawl, log)
	if err != nil {
		log.Fatal("failed to create worker pool", zap.Error(err))
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatal("failed to start worker pool", zap.Error(err))
	}

	cron, err := scheduler.New(cfg.DiscoverySchedule, cfg.DiscoveryOnStart, discovery, log)
	if err != nil {
		log.Fatal("failed to create scheduler", zap.Error(err))
	}
	cron.Start(ctx)

	// --- Metrics ---
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	log.Info("crawler started",
		zap.Int("sources", len(extractors)),
		zap.String("schedule", cfg.DiscoverySchedule),
		zap.Bool("ai_fallback", ai != nil))

	<-ctx.Done()
	log.Info("shutting down crawler...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := cron.Stop(shutdownCtx); err != nil {
		log.Error("scheduler did not stop cleanly", zap.Error(err))
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error("worker pool did not stop cleanly", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", zap.Error(err))
	}

	log.Info("crawler exiting")
}
