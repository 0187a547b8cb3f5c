package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/arenadesk/scorekeeper/brackets"
	"github.com/arenadesk/scorekeeper/config"
	"github.com/arenadesk/scorekeeper/db"
	"github.com/arenadesk/scorekeeper/handlers"
	"github.com/arenadesk/scorekeeper/middleware"
	"github.com/arenadesk/scorekeeper/repositories"
	api "github.com/arenadesk/scorekeeper/routes"
	"github.com/arenadesk/scorekeeper/services"
	"github.com/arenadesk/scorekeeper/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("object storage not configured, exports disabled")
	}

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	txRunner := repositories.NewTxRunner(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	submissionRepo := repositories.NewPostgresSubmissionRepository(dbConn)
	scoreRepo := repositories.NewPostgresSeedingScoreRepository(dbConn)
	rankingRepo := repositories.NewPostgresSeedingRankingRepository(dbConn)
	gameRepo := repositories.NewPostgresBracketGameRepository(dbConn)
	queueRepo := repositories.NewPostgresQueueRepository(dbConn)
	auditRepo := repositories.NewPostgresAuditRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo)
	auditService := services.NewAuditService(auditRepo, logger)
	submissionService := services.NewSubmissionService(submissionRepo, eventRepo, logger)
	rankingService := services.NewRankingService(txRunner, teamRepo, scoreRepo, rankingRepo, logger)
	bracketService := services.NewBracketService(
		txRunner,
		gameRepo,
		teamRepo,
		rankingRepo,
		brackets.NewDoubleEliminationGenerator(),
		wsHub,
		logger,
	)
	queueService := services.NewQueueService(
		txRunner,
		queueRepo,
		eventRepo,
		teamRepo,
		scoreRepo,
		submissionRepo,
		gameRepo,
		wsHub,
		logger,
	)
	acceptanceService := services.NewAcceptanceService(
		txRunner,
		submissionRepo,
		teamRepo,
		scoreRepo,
		gameRepo,
		rankingService,
		bracketService,
		queueService,
		auditService,
		wsHub,
		logger,
	)
	logger.Info("services initialized")

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	scoreHandler := handlers.NewScoreHandler(submissionService, acceptanceService, auditService)
	queueHandler := handlers.NewQueueHandler(queueService)
	bracketHandler := handlers.NewBracketHandler(bracketService)
	rankingHandler := handlers.NewRankingHandler(rankingService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)

	var exportHandler *handlers.ExportHandler
	if uploader != nil {
		exportService := services.NewExportService(teamRepo, rankingRepo, scoreRepo, gameRepo, uploader, logger)
		exportHandler = handlers.NewExportHandler(exportService)
	}
	logger.Info("HTTP handlers initialized")

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		authHandler,
		scoreHandler,
		queueHandler,
		bracketHandler,
		rankingHandler,
		exportHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
