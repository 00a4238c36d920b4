package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pos-backoffice/internal/auth"
	"pos-backoffice/internal/config"
	"pos-backoffice/internal/database"
	"pos-backoffice/internal/logger"
	"pos-backoffice/internal/server"
)

const connectRetryWindow = 30 * time.Second

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// Give in-flight checkouts 30 seconds to commit
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if cfg.Addr == "" {
		log.Info("Redis not configured; login rate limiting is per process")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// the limiter falls back to local buckets while Redis is away
		log.Warn("Redis not reachable at startup", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	return client
}

func main() {
	cfg := config.Load()

	log, err := logger.NewWithFile(cfg.Server.Env, cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting POS back office API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Name),
	)

	if cfg.InsecureSessionSecret() {
		log.Warn("SESSION_SECRET is not set; session tokens are signed with the default key",
			zap.String("env", cfg.Server.Env))
	}

	ctx := context.Background()

	db := database.New(cfg.Database, log)
	if err := db.Connect(ctx, connectRetryWindow); err != nil {
		log.Fatal("Database unreachable", zap.Error(err))
	}

	sqlDB, err := db.DB(ctx)
	if err != nil {
		log.Fatal("Database unreachable", zap.Error(err))
	}
	if err := database.EnsureSchema(ctx, sqlDB, log); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}
	if version, err := database.SchemaVersion(ctx, sqlDB, log); err == nil {
		log.Info("Schema ready", zap.Int64("version", version))
	}
	if err := database.EnsureSeedData(ctx, db, auth.NewPasswordHasher(auth.DefaultCost), log); err != nil {
		log.Fatal("Failed to seed database", zap.Error(err))
	}

	srv := server.NewServer(cfg, log, db, newRedisClient(ctx, cfg.Redis, log))

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
