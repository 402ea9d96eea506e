package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/api"
	"github.com/SIMPLYBOYS/tweetpulse/internal/cache"
	"github.com/SIMPLYBOYS/tweetpulse/internal/config"
	"github.com/SIMPLYBOYS/tweetpulse/internal/dashboard"
	"github.com/SIMPLYBOYS/tweetpulse/internal/db"
	"github.com/SIMPLYBOYS/tweetpulse/internal/session"
	"github.com/SIMPLYBOYS/tweetpulse/internal/store"
	"github.com/SIMPLYBOYS/tweetpulse/internal/twitter"
	"github.com/SIMPLYBOYS/tweetpulse/internal/websocket"
	"github.com/SIMPLYBOYS/tweetpulse/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	sessionTTL      = 7 * 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogDir != "" {
		if err := logger.EnableFileLogging(cfg.LogDir); err != nil {
			log.Fatalf("Failed to enable file logging: %v", err)
		}
	}
	defer logger.Close()
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("TweetPulse starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, fileStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer st.Close()

	chartCache := openCache(ctx, cfg)
	defer chartCache.Close()

	hub := websocket.NewHub(cfg.CORSOrigins)
	go hub.Run(ctx)

	svc := dashboard.NewService(st,
		twitter.NewClient(cfg.TwitterAPIBase, cfg.BearerToken, cfg.TwitterTimeout),
		chartCache,
		dashboard.WithBroadcaster(hub),
		dashboard.WithGranularity(cfg.TwitterGranularity),
	)

	if fileStore != nil {
		watcher, err := fileStore.Watch(func(safeName string) {
			svc.InvalidateChart(context.Background(), safeName)
		})
		if err != nil {
			logger.Warn("Series watcher disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	r := api.SetupRouter(api.RouterConfig{
		Dashboard:   svc,
		Sessions:    session.NewManager(sessionTTL, false),
		LiveFeed:    hub,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// openStore returns the configured backend. The *FileStore is nil unless the
// file backend is in use.
func openStore(cfg *config.Config) (store.Store, *store.FileStore, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		st, err := db.NewPostgresStore(cfg.DB, db.SQLOperations{})
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		st, err := store.NewFileStore(cfg.DataRoot)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file storage under %s", cfg.DataRoot)
		return st, st, nil
	}
}

// openCache prefers Redis when configured and reachable.
func openCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.ChartCacheTTL)
	}

	r := cache.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.ChartCacheTTL)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logger.Warn("Redis at %s unreachable, using in-memory chart cache: %v", cfg.RedisAddr, err)
		r.Close()
		return cache.NewMemory(cfg.ChartCacheTTL)
	}
	logger.Info("Using Redis chart cache at %s", cfg.RedisAddr)
	return r
}
