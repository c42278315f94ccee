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

	"github.com/SAP-F-2025/exam-session/internal/cache"
	"github.com/SAP-F-2025/exam-session/internal/client"
	"github.com/SAP-F-2025/exam-session/internal/config"
	"github.com/SAP-F-2025/exam-session/internal/handlers"
	"github.com/SAP-F-2025/exam-session/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-session/internal/services"
	"github.com/SAP-F-2025/exam-session/internal/session"
	"github.com/SAP-F-2025/exam-session/internal/utils"
	"github.com/SAP-F-2025/exam-session/internal/validator"
	"github.com/SAP-F-2025/exam-session/pkg"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment, cfg.LogLevel)
	slogger := utils.ToSlogLogger(logger)

	if err := run(cfg, logger, slogger); err != nil {
		logger.LogError(err, "Session engine stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger utils.Logger, slogger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Collaborators

	deps, lister, err := buildCollaborators(cfg, slogger)
	if err != nil {
		return err
	}

	var progress *cache.ProgressCache
	if cfg.Session.ProgressTTL > 0 {
		redisClient, err := pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, progress checkpoints disabled", "error", err)
		} else {
			defer redisClient.Close()
			progress = cache.NewProgressCache(cache.NewRedisCache(redisClient, slogger), cfg.Session.ProgressTTL)
		}
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.LogError(err, "Failed to close event publisher")
		}
	}()

	// =========================================================================
	// Services

	sessionService := services.NewSessionService(
		services.SessionDeps{
			Collaborators: deps,
			Lister:        lister,
			Progress:      progress,
			Publisher:     publisher,
		},
		services.SessionServiceConfig{
			TickInterval:     cfg.Session.TickInterval,
			WarningThreshold: cfg.Session.WarningThreshold,
			MaxSessions:      cfg.Session.MaxSessions,
		},
		slogger,
		validator.New(),
	)
	defer sessionService.Shutdown()

	serviceManager := services.NewServiceManager(
		sessionService,
		services.NewExportService(sessionService, slogger),
	)

	// =========================================================================
	// HTTP

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), utils.ContextLogger(logger), utils.LoggerMiddleware(logger))

	var parser handlers.TokenParser
	if cfg.Auth.CasdoorEnabled() {
		parser = handlers.NewCasdoorParser(handlers.CasdoorConfig{
			Endpoint:         cfg.Auth.CasdoorEndpoint,
			ClientID:         cfg.Auth.CasdoorClientID,
			ClientSecret:     cfg.Auth.CasdoorClientSecret,
			Certificate:      cfg.Auth.CasdoorCertificate,
			OrganizationName: cfg.Auth.CasdoorOrganization,
			ApplicationName:  cfg.Auth.CasdoorApplication,
		})
	} else if !cfg.Auth.TrustUserHeader {
		return errors.New("no authentication configured: set CASDOOR_ENDPOINT and CASDOOR_CERTIFICATE or AUTH_TRUST_USER_HEADER")
	}

	handlers.NewHandlerManager(serviceManager, logger).
		SetupRoutes(router, handlers.AuthMiddleware(parser, cfg.Auth.TrustUserHeader, logger))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Session engine listening",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"backend", cfg.SessionBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildCollaborators(cfg *config.Config, logger *slog.Logger) (session.Dependencies, services.ResumableLister, error) {
	switch cfg.SessionBackend {
	case config.BackendPostgres:
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return session.Dependencies{}, nil, err
		}
		gateway := services.NewAttemptGateway(postgres.NewAttemptPostgreSQL(db), logger)
		return session.Dependencies{
			Fetcher:           gateway,
			Submitter:         gateway,
			QuestionSubmitter: gateway,
		}, gateway, nil
	default:
		attemptClient := client.New(client.Config{
			BaseURL:      cfg.AttemptAPI.URL,
			Timeout:      cfg.AttemptAPI.Timeout,
			TokenURL:     cfg.AttemptAPI.TokenURL,
			ClientID:     cfg.AttemptAPI.ClientID,
			ClientSecret: cfg.AttemptAPI.ClientSecret,
			Logger:       logger,
		})
		return session.Dependencies{
			Fetcher:           attemptClient,
			Submitter:         attemptClient,
			QuestionSubmitter: attemptClient,
		}, attemptClient, nil
	}
}
