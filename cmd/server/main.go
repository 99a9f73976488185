package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/victoralfred/invite_manager/internal/invitations"
	"github.com/victoralfred/invite_manager/pkg/audit"
	"github.com/victoralfred/invite_manager/pkg/cache"
	"github.com/victoralfred/invite_manager/pkg/config"
	"github.com/victoralfred/invite_manager/pkg/database"
	"github.com/victoralfred/invite_manager/pkg/logger"
	"github.com/victoralfred/invite_manager/pkg/metrics"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	log.Info("starting invite_manager")

	// Connect to database
	log.Info("connecting to database")
	db, err := database.NewPostgres(database.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to connect to database", err)
	}
	defer db.Close()

	if err := db.Health(ctx); err != nil {
		log.Fatal("database health check failed", err)
	}
	if err := invitations.EnsureSchema(ctx, db); err != nil {
		log.Fatal("failed to ensure invitations schema", err)
	}
	log.Info("database connected successfully")

	// Initialize query cache (Redis, optional)
	var queryCache cache.Cache
	if cfg.Redis.Host != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Client:       redisClient,
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		})
		if err != nil {
			log.Warn("redis unavailable, falling back to in-memory cache")
			queryCache = cache.NewInMemoryCache()
		} else {
			log.Info("redis query cache initialized")
			queryCache = redisCache
		}
		defer queryCache.Close()
	}

	// Initialize event journal
	journal, err := audit.NewJournal(audit.JournalConfig{
		BasePath:      cfg.Audit.Dir,
		BatchSize:     cfg.Audit.BatchSize,
		FlushInterval: cfg.Audit.FlushInterval,
	})
	if err != nil {
		log.Fatal("failed to open event journal", err)
	}
	defer journal.Close()

	// Assemble the invitation core
	recorder := metrics.NewRecorder()
	intids := invitations.NewIntIDRegistry()
	catalog := invitations.NewCatalog()
	container := invitations.NewContainer(intids, catalog)
	store := invitations.NewStore(db)

	bus := invitations.NewBus()
	bus.Subscribe(audit.Subscriber(journal, log))

	actors := invitations.NewActorRegistry()

	service := invitations.NewService(invitations.ServiceConfig{
		Container: container,
		Catalog:   catalog,
		IntIDs:    intids,
		Actors:    actors,
		Bus:       bus,
		Sites:     invitations.ContextSiteResolver{},
		Store:     store,
		Cache:     queryCache,
		CacheTTL:  cfg.Invitations.CacheTTL,
		Log:       log,
		Metrics:   recorder,
	})

	// Rebuild container and catalog from the durable store
	log.Info("rebuilding invitation catalog")
	stored, err := store.LoadAll(ctx)
	if err != nil {
		log.Fatal("failed to load invitations", err)
	}
	for _, inv := range stored {
		if err := container.Add(inv); err != nil {
			log.WithCode(inv.Code).Error("failed to restore invitation", err)
		}
	}
	log.WithField("count", container.Len()).Info("invitation catalog rebuilt")

	// Expose metrics
	metricsServer := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: recorder.Handler(),
	}
	go func() {
		log.WithField("addr", cfg.Metrics.Addr).Info("metrics endpoint listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", err)
		}
	}()

	// Periodically delete expired invitations
	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Invitations.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := service.DeleteExpiredInvitations(ctx, invitations.QueryFilter{}, 0)
				if len(removed) > 0 {
					log.WithField("count", len(removed)).Info("expired invitation cleanup completed")
				}
			case <-stopCleanup:
				return
			}
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	close(stopCleanup)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", err)
	}

	log.Info("invite_manager stopped")
}
