package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/librasign/signcheck/config"
	"github.com/librasign/signcheck/internal/adapter/inference/httpinfer"
	redisstore "github.com/librasign/signcheck/internal/adapter/storage/redis"
	sqlitestore "github.com/librasign/signcheck/internal/adapter/storage/sqlite"
	"github.com/librasign/signcheck/internal/infrastructure/logger"
	"github.com/librasign/signcheck/internal/port"
	"github.com/librasign/signcheck/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting signcheck-worker: workers=%d, store=%s, inference=%s",
		cfg.Workers, cfg.StoreBackend, cfg.InferenceURL)

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to open store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, err := selectJobStore(ctx, cfg, store)
	if err != nil {
		logger.Error.Printf("failed to connect job store: %v", err)
		os.Exit(1)
	}

	queue := sqlitestore.NewWorkQueue(store, cfg.QueueLease)
	recognizer := httpinfer.NewClient(cfg.InferenceURL, cfg.InferenceTimeout)

	pool := service.NewWorkerPool(queue, jobStore, recognizer, cfg.Workers, cfg.MaxDeliveryAttempts)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pool.Start(ctx)
		<-ctx.Done()
		logger.Info.Printf("shutting down")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error.Printf("worker failed: %v", err)
		os.Exit(1)
	}
	logger.Info.Printf("shutdown complete")
}

func selectJobStore(ctx context.Context, cfg *config.Config, store *sqlitestore.Store) (port.JobStore, error) {
	if cfg.StoreBackend != "redis" {
		return store, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return redisstore.NewStore(client, cfg.RedisJobTTL), nil
}
