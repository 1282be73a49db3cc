package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/connectcrm/auth-service/internal/auth"
	"github.com/connectcrm/auth-service/internal/background"
	"github.com/connectcrm/auth-service/internal/config"
	"github.com/connectcrm/auth-service/internal/database"
	"github.com/connectcrm/auth-service/internal/handlers"
	middlewareCustom "github.com/connectcrm/auth-service/internal/middleware"
	"github.com/connectcrm/auth-service/internal/repositories"
	"github.com/connectcrm/auth-service/internal/routes"
	"github.com/connectcrm/auth-service/internal/services"
	pkglogger "github.com/connectcrm/auth-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := database.Migrate(migrateCtx, cfg.Database.DSN(), "migrations"); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	codeRepo := repositories.NewEmailCodeRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	securityLogRepo := repositories.NewSecurityLogRepository(db)

	// Token manager signs both session and pending-login tokens
	tokenManager := auth.NewTokenManager(
		cfg.Auth.SessionSecret,
		cfg.Auth.SessionExpiry,
		cfg.TwoFactor.PendingExpiry,
	)

	// Timing delay keeps credential responses constant-time
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    100,
		RandomDelayMs:  100,
		DelayOnSuccess: true,
	})

	totpManager := auth.NewTOTPManager(cfg.TwoFactor.TOTPIssuer)

	// AWS SES email delivery; with no from-address configured the service
	// reports skipped deliveries instead of failing
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.FromName,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(securityLogRepo, auditLogger, logger)
	challengeService := services.NewChallengeService(accountRepo, codeRepo, emailService, totpManager, auditService, cfg.TwoFactor, logger)
	loginService := services.NewLoginService(accountRepo, attemptRepo, challengeService, tokenManager, timingDelay, auditService, cfg.Auth, logger)
	resetService := services.NewPasswordResetService(accountRepo, resetRepo, codeRepo, emailService, auditService, cfg.Auth, cfg.Server.BaseURL, logger)

	// Background workers
	cleanupManager := background.NewCleanupManager(attemptRepo, codeRepo, resetRepo, logger, cfg.Auth.CleanupInterval)

	var backupManager *background.BackupManager
	var backupRunner handlers.BackupRunner
	if cfg.Backup.Enabled {
		backupManager = background.NewBackupManager(cfg.Database, cfg.Backup, auditService, logger)
		backupRunner = backupManager
	}

	// Initialize handlers
	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Server.Env == "production",
		SameSite: "lax",
	}
	authHandler := handlers.NewAuthHandler(loginService, resetService, tokenManager, cookieConfig, cfg.Auth.SessionExpiry, cfg.TwoFactor.PendingExpiry, nil)
	twoFactorHandler := handlers.NewTwoFactorHandler(challengeService, accountRepo, nil)
	securityLogHandler := handlers.NewSecurityLogHandler(auditService)
	adminHandler := handlers.NewAdminHandler(backupRunner)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, twoFactorHandler, securityLogHandler, adminHandler, tokenManager, accountRepo)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go cleanupManager.Start(workerCtx)
	if backupManager != nil {
		go backupManager.Start(workerCtx)
	}

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

	workerCancel()
	cleanupManager.Stop()
	if backupManager != nil {
		backupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
