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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/MaxMateus/ms-auth/internal/auth"
	"github.com/MaxMateus/ms-auth/internal/background"
	"github.com/MaxMateus/ms-auth/internal/cache"
	"github.com/MaxMateus/ms-auth/internal/config"
	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/handlers"
	middlewareCustom "github.com/MaxMateus/ms-auth/internal/middleware"
	"github.com/MaxMateus/ms-auth/internal/repositories"
	"github.com/MaxMateus/ms-auth/internal/routes"
	"github.com/MaxMateus/ms-auth/internal/services"
	pkglogger "github.com/MaxMateus/ms-auth/pkg/logger"
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

	// Run migrations before opening the pool
	if err := database.Migrate(&cfg.Database, logger); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize redis-backed token cache. The cache degrades to a no-op on
	// redis failures, so startup does not depend on redis being up.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	tokenCache := cache.NewRedisTokenCache(redisClient, logger)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewAccessTokenRepository(db)
	codeRepo := repositories.NewMfaCodeRepository(db)
	methodRepo := repositories.NewMfaMethodRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(tokenRepo, codeRepo, logger, cfg.Auth.CleanupInterval)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Verification code delivery
	emailSender, err := services.NewAWSSESCodeSender(cfg.Dispatch.AWSRegion, cfg.Dispatch.EmailFromAddress, logger)
	if err != nil {
		logger.Error("failed to initialize email sender", slog.Any("error", err))
		os.Exit(1)
	}
	smsSender, err := services.NewAWSSNSCodeSender(cfg.Dispatch.AWSRegion)
	if err != nil {
		logger.Error("failed to initialize sms sender", slog.Any("error", err))
		os.Exit(1)
	}
	whatsappSender := services.NewWhatsappCodeSender(cfg.Dispatch.WhatsappAPIURL, cfg.Dispatch.WhatsappAccessToken)
	dispatcher := services.NewCodeDispatcher(emailSender, smsSender, whatsappSender, logger)

	// Initialize services
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.ClientID, cfg.Auth.AccessTokenExpiry)
	tokenService := services.NewTokenService(issuer, tokenRepo, tokenCache, db, db.Pool, logger)
	mfaService := services.NewMfaService(userRepo, codeRepo, methodRepo, db, dispatcher, logger, auditLogger)
	authService := services.NewAuthService(userRepo, methodRepo, tokenService, logger, auditLogger)
	registerService := services.NewRegisterService(userRepo, mfaService, db, logger, auditLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, registerService)
	mfaHandler := handlers.NewMfaHandler(mfaService, tokenService)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, mfaHandler, tokenService)

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

	// Start cleanup task
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
