package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/useradmin/internal/api"
	"github.com/wuwenbin0122/useradmin/internal/audit"
	"github.com/wuwenbin0122/useradmin/internal/auth"
	"github.com/wuwenbin0122/useradmin/internal/db"
	"github.com/wuwenbin0122/useradmin/internal/events"
	"github.com/wuwenbin0122/useradmin/internal/users"
	"github.com/wuwenbin0122/useradmin/internal/utils"
)

type pinger func(ctx context.Context) error

func main() {
	if err := utils.LoadEnvFile(".env"); err != nil {
		log.Fatalf("config: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal("mongo: failed to connect", zap.Error(err))
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			logger.Warn("mongo: close error", zap.Error(err))
		}
	}()

	if err := mongoStore.EnsureCollections(ctx); err != nil {
		logger.Fatal("mongo: ensure collections", zap.Error(err))
	}

	checks := map[string]pinger{"mongo": mongoStore.Ping}

	var recorder audit.Recorder = audit.NewLogRecorder(logger)
	if cfg.Postgres.Enabled() {
		postgres, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal("postgres: failed to connect", zap.Error(err))
		}
		defer postgres.Close()

		if err := postgres.EnsureSchema(ctx); err != nil {
			logger.Fatal("postgres: ensure schema", zap.Error(err))
		}
		recorder = audit.NewPostgresRecorder(postgres.Pool)
		checks["postgres"] = postgres.Ping
	} else {
		logger.Info("postgres: POSTGRES_DSN not set, audit events go to the log")
	}

	authOpts := []auth.Option{
		auth.WithIssuer(cfg.Session.Issuer),
		auth.WithLogger(logger.Named("auth")),
	}
	if cfg.Redis.Enabled() {
		redisClient, err := db.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("redis: failed to connect", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()

		authOpts = append(authOpts, auth.WithLimiter(
			auth.NewRedisLimiter(redisClient, cfg.Redis.LoginMaxAttempts, cfg.Redis.LoginAttemptWindow),
		))
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Info("redis: REDIS_URL not set, login throttling disabled")
	}

	hasher := auth.NewHasher(cfg.Hashing.Cost, cfg.Hashing.Concurrency)
	userStore := users.NewMongoStore(mongoStore.Users)
	userService := users.NewService(userStore, hasher, logger.Named("users"))

	authService, err := auth.NewService(cfg.Session.Secret, cfg.Session.TTL, userStore, hasher, authOpts...)
	if err != nil {
		logger.Fatal("failed to initialise auth service", zap.Error(err))
	}

	hub := events.NewHub(logger)
	go hub.Run(ctx)

	handler := api.NewHandler(authService, userService, recorder, hub, logger, api.Options{
		RequestTimeout: cfg.RequestTimeout,
		SecureCookie:   cfg.Session.SecureCookie,
	})
	router := setupRouter(handler, logger, checks)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

func setupRouter(handler *api.Handler, logger *zap.Logger, checks map[string]pinger) *gin.Engine {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				deps[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":       state,
			"dependencies": deps,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	handler.RegisterRoutes(router)

	return router
}
