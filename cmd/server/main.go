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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/ericfitz/boardsync/api"
	"github.com/ericfitz/boardsync/internal/config"
	"github.com/ericfitz/boardsync/internal/slogging"
	"github.com/ericfitz/boardsync/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := config.ParseFlags()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := slogging.Initialize(slogging.Config{
		Level:            slogging.ParseLogLevel(cfg.Logging.Level),
		IsDev:            cfg.Logging.IsDev,
		LogDir:           cfg.Logging.LogDir,
		MaxAgeDays:       cfg.Logging.MaxAgeDays,
		MaxSizeMB:        cfg.Logging.MaxSizeMB,
		MaxBackups:       cfg.Logging.MaxBackups,
		AlsoLogToConsole: cfg.Logging.AlsoLogToConsole,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := slogging.Get()
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsHandler http.Handler
	if cfg.Telemetry.MetricsEnabled {
		svc, err := telemetry.NewService(cfg.Telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := svc.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown error: %v", err)
			}
		}()
		metricsHandler = svc.MetricsHandler()
	}

	metrics, err := telemetry.NewSessionMetrics()
	if err != nil {
		return fmt.Errorf("failed to create session metrics: %w", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	var identity api.IdentityProvider = api.GuestIdentityProvider{}
	if cfg.Auth.JWTSecret != "" {
		identity = api.NewJWTIdentityProvider(cfg.Auth.JWTSecret)
		logger.Info("JWT identity verification enabled")
	} else {
		logger.Info("No JWT secret configured, all participants join as guests")
	}

	hub := api.NewHub(cfg.WebSocket, store, identity, metrics)

	if !cfg.Logging.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(slogging.LoggerMiddleware())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(gin.Recovery())
	api.RegisterRoutes(router, hub, metricsHandler)

	addr := cfg.Server.Interface + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// buildStore selects the board store backend: Redis when configured, an
// in-process store otherwise. An unreachable Redis is a startup error, not a
// silent fallback.
func buildStore(ctx context.Context, cfg *config.Config) (api.BoardStore, error) {
	addr := cfg.Redis.Addr()
	if addr == "" {
		slogging.Get().Info("Redis not configured, using in-memory board store")
		return api.NewMemoryBoardStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	if err := redisotel.InstrumentTracing(client); err != nil {
		slogging.Get().Warn("Failed to instrument redis tracing: %v", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		slogging.Get().Warn("Failed to instrument redis metrics: %v", err)
	}
	slogging.Get().Info("Using Redis board store at %s", addr)
	return api.NewRedisBoardStore(client), nil
}
