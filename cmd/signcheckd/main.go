package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/librasign/signcheck/config"
	HTTPAdapter "github.com/librasign/signcheck/internal/adapter/http"
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

	logger.Info.Printf("starting signcheckd on port %d, store=%s", cfg.Port, cfg.StoreBackend)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error.Printf("failed to create data directory: %v", err)
		os.Exit(1)
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
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

	authSvc := service.NewAuthService(store, cfg.AuthSecret, cfg.TokenLifetime)
	if err := authSvc.Bootstrap(ctx, cfg.BootstrapUser, cfg.BootstrapPassword); err != nil {
		logger.Error.Printf("failed to bootstrap user: %v", err)
		os.Exit(1)
	}

	submissionSvc := service.NewSubmissionService(jobStore, queue, int64(cfg.MaxUploadSizeMB)*1024*1024)
	resultSvc := service.NewResultService(jobStore, service.PollConfig{
		Initial: cfg.PollInitial,
		Cap:     cfg.PollCap,
		MaxWait: cfg.PollMaxWait,
	})

	server := HTTPAdapter.NewServer(authSvc, submissionSvc, resultSvc, cfg.MaxUploadSizeMB, cfg.BehindProxy)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info.Printf("server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info.Printf("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error.Printf("server failed: %v", err)
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
