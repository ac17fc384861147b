package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/opsdeck/authguard/internal/auditlog"
	"github.com/opsdeck/authguard/internal/auth"
	"github.com/opsdeck/authguard/internal/background"
	"github.com/opsdeck/authguard/internal/config"
	"github.com/opsdeck/authguard/internal/database"
	"github.com/opsdeck/authguard/internal/directory"
	"github.com/opsdeck/authguard/internal/guard"
	"github.com/opsdeck/authguard/internal/handlers"
	"github.com/opsdeck/authguard/internal/lock"
	middlewareCustom "github.com/opsdeck/authguard/internal/middleware"
	"github.com/opsdeck/authguard/internal/routes"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Audit trail
	auditStore, err := auditlog.NewStore(cfg.AuditLog.Dir, logger)
	if err != nil {
		logger.Error("failed to initialize audit log store", slog.Any("error", err))
		os.Exit(1)
	}
	auditService := auditlog.NewService(auditStore, logger)

	// Abuse guard, wired to record every block in the audit trail
	g := guard.New(guard.Config{
		MaxAttempts: cfg.Guard.MaxAttempts,
		Window:      cfg.Guard.Window,
		Block:       cfg.Guard.Block,
	}, logger)
	g.SetReporter(auditService)

	// Cross-instance lock for shared maintenance work
	locker := lock.New(db, logger)

	// Background maintenance: local block sweep plus lock-guarded archive
	cleanupManager := background.NewCleanupManager(
		g,
		auditStore,
		locker,
		logger,
		cfg.Cleanup.SweepInterval,
		cfg.Cleanup.ArchiveInterval,
		cfg.Cleanup.LockTimeout,
		cfg.AuditLog.RetentionDays,
	)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	// Identity directory (read-only)
	directoryRepo := directory.NewRepository(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(directoryRepo, tokenManager, g, auditService, logger)
	guardAdminHandler := handlers.NewGuardAdminHandler(g, auditService, logger)
	auditAdminHandler := handlers.NewAuditAdminHandler(auditStore, logger)
	healthHandler := handlers.NewHealthHandler(db)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, guardAdminHandler, auditAdminHandler, healthHandler, tokenManager, g)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start maintenance tasks
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
