package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/cache"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/config"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/data"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/db"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/events"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/handler"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/middleware"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/service"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/storage"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		panic(fmt.Sprintf("cannot create config: %v", err))
	}

	logger, err := logging.NewForFile(cfg.LogFile)
	if err != nil {
		panic(fmt.Sprintf("cannot create logger: %v", err))
	}
	ctx = logging.ContextWithLogger(ctx, logger)

	database, err := db.New(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "cannot create db", zap.Error(err))
	}
	defer database.Close()

	repo := data.NewUploadRepository(database)

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "cannot create blob store", zap.Error(err))
	}

	var metaCache service.Cache = cache.NewNoop()
	if cfg.RedisURL != "" {
		redisConn := redis.NewClient(&redis.Options{
			Addr: cfg.RedisURL,
		})
		metaCache = cache.NewUploadCache(redisConn, cfg.MetaCacheTTL)
	}

	if err := events.WaitForBroker(ctx, logger, cfg.KafkaBroker, 5, 10*time.Second, 5*time.Second); err != nil {
		logger.Fatal(ctx, "oracle broker not available", zap.Error(err))
	}
	logger.Info(ctx, "Connected to the oracle broker", zap.String("broker", cfg.KafkaBroker))

	producer := events.NewProducer([]string{cfg.KafkaBroker}, cfg.KafkaTopic)
	defer producer.Close()

	uploadService := service.NewUploadService(repo, store, producer, metaCache, cfg.UploadTTL)
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.MaxUploadBytes)

	retention := worker.NewRetentionWorker(uploadService, logger, cfg.RetentionInterval)
	go retention.Start(ctx)

	r := chi.NewRouter()
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, cfg.MaxUploadBytes)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	uploadHandler.RegisterRoutes(r)

	port := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info(ctx, "Starting server", zap.String("port", port))

	srv := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "cannot start http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal(ctx, "server forced to shutdown", zap.Error(err))
	}
	logger.Info(ctx, "Server stopped")
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.S3Endpoint != "" {
		return storage.NewS3(ctx, cfg)
	}
	return storage.NewLocal(cfg.UploadDir)
}
