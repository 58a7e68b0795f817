package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"redas-backend/internal/cache"
	"redas-backend/internal/config"
	"redas-backend/internal/cron"
	"redas-backend/internal/database"
	"redas-backend/internal/handlers"
	"redas-backend/internal/logger"
	"redas-backend/internal/notify"
	"redas-backend/internal/repository"
	"redas-backend/internal/service"
	"redas-backend/internal/storage"
)

func main() {
	// 1. Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Structured logger
	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "redas-backend")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx := context.Background()

	// 3. Connect to PostgreSQL and apply the schema
	db, err := database.New(ctx, &cfg.DB, zlog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	reports := repository.NewPostgresReports(db.GetPool())
	users := repository.NewPostgresUsers(db.GetPool())
	inbox := repository.NewPostgresNotifications(db.GetPool())

	// 4. Optional Redis-backed statistics cache
	var stats *cache.StatsCache
	if cfg.Redis.Enabled() {
		kv, err := cache.NewRedisKV(ctx, cfg.Redis, zlog)
		if err != nil {
			zlog.Warn("redis unavailable, statistics cache disabled", zap.Error(err))
		} else {
			defer kv.Close()
			stats = cache.NewStatsCache(kv, cfg.StatsCacheTTL, zlog)
		}
	}

	// 5. Workflow service and notification fan-out
	dispatcher := notify.NewDispatcher(users, inbox, zlog)
	defer dispatcher.Wait()

	reportService := service.NewReportService(reports, users, dispatcher, stats, zlog)

	// 6. File storage for archived exports (local disk or Cloudflare R2)
	fileStore, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialize file storage: %w", err)
	}

	// 7. Background reminder for reports stuck in pending
	scheduler, err := cron.Start(cfg.Reminder.Schedule,
		cron.NewReminderJob(reports, users, inbox, cfg.Reminder.StaleDays, zlog), zlog)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	// 8. Router
	router := handlers.NewRouter(cfg, handlers.Deps{
		Reports:       reportService,
		Users:         users,
		Notifications: inbox,
		Store:         fileStore,
		Health:        db.Health,
		Log:           zlog,
	})

	// 9. Start server with graceful shutdown
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server started", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-done:
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zlog.Info("server exited properly")
	return nil
}
