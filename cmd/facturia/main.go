package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/facturia/facturia/internal/app"
	"github.com/facturia/facturia/internal/auditlog"
	audithttp "github.com/facturia/facturia/internal/auditlog/http"
	"github.com/facturia/facturia/internal/auth"
	"github.com/facturia/facturia/internal/authz"
	"github.com/facturia/facturia/internal/observability"
	"github.com/facturia/facturia/internal/platform/cache"
	"github.com/facturia/facturia/internal/platform/db"
	"github.com/facturia/facturia/internal/shared"
	"github.com/facturia/facturia/internal/users"
	"github.com/facturia/facturia/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if cfg.PGMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	auditWriter, err := auditlog.NewWriter(cfg.AuditLogDir)
	if err != nil {
		logger.Error("open audit log", slog.Any("error", err))
		os.Exit(1)
	}
	auditAnalyzer, err := auditlog.NewAnalyzer(cfg.AuditLogDir, auditlog.WithLogger(logger))
	if err != nil {
		logger.Error("open audit analyzer", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	engine := authz.NewEngine(authz.WithObserver(metrics))

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, engine, auditWriter, logger)
	usersHandler := users.NewHandler(logger, usersService)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, auditWriter)

	auditHandler := audithttp.NewHandler(logger, auditAnalyzer, auditlog.NewExporter(), engine)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		ActorLookup:    usersRepo,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
