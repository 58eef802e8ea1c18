package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prudhvinik1/notesync/internal/backup"
	"github.com/prudhvinik1/notesync/internal/config"
	"github.com/prudhvinik1/notesync/internal/database"
	"github.com/prudhvinik1/notesync/internal/handlers"
	"github.com/prudhvinik1/notesync/internal/repositories"
	"github.com/prudhvinik1/notesync/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	pool, err := database.NewPostgresPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			return err
		}
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis.URL, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	itemRepo := repositories.NewPostgresItemRepository(pool)
	accountRepo := repositories.NewPostgresAccountRepository(pool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)

	target, err := backup.NewTarget(ctx, cfg.Backup)
	if err != nil {
		return fmt.Errorf("failed to create backup target: %w", err)
	}

	// A nil Backuper disables the backup endpoint.
	var backups services.Backuper
	var workers worker
	if target != nil {
		dispatcher := backup.NewDispatcher(itemRepo, target, log.Named("backup"), backup.Options{
			Workers:    cfg.Backup.Workers,
			QueueSize:  cfg.Backup.QueueSize,
			MaxRetries: cfg.Backup.MaxRetries,
			RetryBase:  cfg.Backup.RetryBase,
			Timeout:    cfg.Backup.Timeout,
		})
		backups = dispatcher
		workers = dispatcher
		log.Info("backups enabled", zap.String("driver", cfg.Backup.Driver), zap.String("bucket", cfg.Backup.Bucket))
	}

	router := handlers.NewRouter(handlers.Deps{
		Auth: services.NewAuthService(accountRepo, sessionRepo, cfg.JWT.Secret, cfg.JWT.Expiry),
		Sync: services.NewSyncService(itemRepo, log.Named("sync"), services.SyncOptions{
			DefaultLimit: cfg.Sync.DefaultLimit,
			MaxLimit:     cfg.Sync.MaxLimit,
			BoundaryLag:  cfg.Sync.BoundaryLag,
		}),
		Items:  services.NewItemService(itemRepo, backups, cfg.Backup.OnCreate, log.Named("items")),
		Logger: log.Named("http"),
	})

	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	log.Info("starting server", zap.String("addr", server.Addr))
	return runServer(ctx, server, workers, cfg.Server.ShutdownTimeout, log)
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type worker interface {
	Run(ctx context.Context) error
}

// runServer serves until ctx is done or the listener fails, then shuts the
// server down. workers may be nil. Their context is cancelled only after
// Shutdown returns, so jobs enqueued by in-flight requests are still drained.
func runServer(ctx context.Context, server httpServer, workers worker, shutdownTimeout time.Duration, log *zap.Logger) error {
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	g, gctx := errgroup.WithContext(ctx)

	if workers != nil {
		g.Go(func() error {
			return workers.Run(workerCtx)
		})
	}

	g.Go(func() error {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		defer stopWorkers()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
