package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/newsfeed/crawler-service/internal/adapter/postgres"
	redis_adapter "github.com/newsfeed/crawler-service/internal/adapter/redis"
	"github.com/newsfeed/crawler-service/internal/delivery/http/handler"
	"github.com/newsfeed/crawler-service/internal/delivery/http/router"
	"github.com/newsfeed/crawler-service/internal/usecase"
	"github.com/newsfeed/crawler-service/pkg/config"
	"github.com/newsfeed/crawler-service/pkg/logger"
	"go.uber.org/zap"
)

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
	log = log.With(zap.String("service", "api"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connections ---
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

	// --- Repositories ---
	articleRepo := postgres.NewArticleRepo(dbpool)
	deadLetterRepo := postgres.NewDeadLetterRepo(dbpool)
	articleCache := redis_adapter.NewArticleCache(rdb, cfg.CacheListTTL, cfg.CacheArticleTTL, log)

	// --- Use Cases ---
	articles := usecase.NewArticleUseCase(articleRepo, articleCache)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(articles, deadLetterRepo, map[string]handler.Pinger{
		"postgres": dbpool,
		"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("could not listen on port", zap.String("port", cfg.ServerPort), zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exiting")
}
