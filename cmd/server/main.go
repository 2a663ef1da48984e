package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatzone/internal/cache"
	"chatzone/internal/config"
	"chatzone/internal/repository"
	"chatzone/internal/service"
	"chatzone/internal/transport/rest"
	"chatzone/internal/transport/ws"
	"chatzone/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited")
}

func run(cfg *config.Config) error {
	if cfg.UsesDefaultSecret() {
		slog.Warn("JWT_SECRET not set, using dev default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return err
	}
	slog.Info("connected to MongoDB", "database", cfg.MongoDatabase)
	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return err
	}
	slog.Info("connected to Redis", "addr", cfg.RedisURI)

	// Nobody is connected to a fresh process.
	presenceCache := cache.NewPresenceCache(rdb)
	if err := presenceCache.Reset(ctx); err != nil {
		slog.Warn("failed to reset presence cache", "error", err)
	}

	// Initialize repositories
	chatRepo := repository.NewChatRepo(db)
	userRepo := repository.NewUserRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	notificationRepo := repository.NewNotificationRepo(db)

	var statusStore service.StatusStore
	switch cfg.StatusBackend {
	case "redis":
		statusStore = cache.NewStatusCache(rdb, cfg.StatusTTL)
	default:
		statusStore = service.NewMemoryStatusStore(cfg.StatusCacheSize, cfg.StatusTTL)
	}
	slog.Info("status store ready", "backend", cfg.StatusBackend)

	poolCfg := worker.DefaultConfig()
	poolCfg.Workers = cfg.Workers
	poolCfg.QueueSize = cfg.WorkerQueueSize
	pool := worker.NewPool(poolCfg)
	pool.Start(context.Background())

	push := service.NewPushGateway(cfg.Push)
	if !cfg.Push.IsEnabled() {
		slog.Info("push gateway disabled, notifications are stored only")
	}

	rt := service.NewRealtime(service.Deps{
		Rooms:         chatRepo,
		Messages:      messageRepo,
		Notifications: notificationRepo,
		Push:          push,
		StatusStore:   statusStore,
		Pool:          pool,
		PresenceSinks: []service.PresenceSink{presenceCache, userRepo},
		LastSeen:      presenceCache,
		PushTries:     cfg.Push.MaxRetries,
	})

	wsHub := ws.NewHub()
	router := rest.NewRouter(&rest.Container{
		Config:      cfg,
		AuthService: service.NewAuthService(cfg.JWTSecret),
		Realtime:    rt,
		WSHub:       wsHub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server", "connections", wsHub.Count())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		wsHub.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
		// Disconnects queue offline presence writes; the pool must still take them.
		if err := wsHub.Wait(shutdownCtx); err != nil {
			slog.Warn("websocket connections still open", "connections", wsHub.Count(), "error", err)
		}
		return pool.Stop(shutdownCtx)
	})
	return g.Wait()
}
