package main

import (
	"alcyxob/climb-sim/internal/api"
	"alcyxob/climb-sim/internal/config"
	"alcyxob/climb-sim/internal/logger"
	"alcyxob/climb-sim/internal/params"
	"alcyxob/climb-sim/internal/repository"
	"alcyxob/climb-sim/internal/repository/mongo"
	"alcyxob/climb-sim/internal/service"
	"alcyxob/climb-sim/internal/storage"
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
)

// @title Climbing Coach Simulator API
// @version 1.0
// @description Simulated climbing-athlete episodes driven by coach-authored training plans.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	// --- Logger ---
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zlog.Info("Starting climbing simulator server...")
	if cfg.JWT.Secret == "" {
		zlog.Fatal("jwt.secret (JWT_SECRET) must be set")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		zlog.Fatal("Could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		zlog.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			zlog.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	zlog.Info("Database connection established", zap.String("database", cfg.Database.Name))

	// --- Ensure Indexes ---
	// Unique (episodeId, step) indexes back the write-once guarantees, so this is not backgrounded.
	idxCtx, cancelIdx := context.WithTimeout(context.Background(), time.Minute)
	if err := mongo.EnsureIndexes(idxCtx, appDB); err != nil {
		cancelIdx()
		zlog.Fatal("Could not create indexes", zap.Error(err))
	}
	cancelIdx()

	// --- Repositories ---
	rawStore := mongo.NewMongoStore(appDB)
	simStore := repository.NewSimulationStore(rawStore)
	userRepo := mongo.NewMongoUserRepository(appDB)

	// --- Parameter Sets ---
	if cfg.Simulation.ParameterFile != "" {
		sets, err := params.LoadFile(cfg.Simulation.ParameterFile)
		if err != nil {
			zlog.Fatal("Could not read parameter file", zap.String("path", cfg.Simulation.ParameterFile), zap.Error(err))
		}
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
		err = params.Seed(seedCtx, rawStore, sets)
		cancelSeed()
		if err != nil {
			zlog.Fatal("Could not seed parameter sets", zap.Error(err))
		}
		zlog.Info("Parameter sets seeded", zap.Int("count", len(sets)))
	}

	// --- Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, zlog.Named("auth"))
	episodeService := service.NewEpisodeService(simStore, params.NewLoader(rawStore), service.EpisodeConfig{
		MaxSteps:        cfg.Simulation.MaxSteps,
		ParameterSetRef: cfg.Simulation.ParameterSet,
		HiThreshold:     cfg.Simulation.HiThreshold,
		PhaseLength:     cfg.Simulation.PhaseLength,
	}, zlog.Named("episode"))

	var exportService service.ExportService
	if cfg.S3.BucketName != "" {
		s3Ctx, cancelS3 := context.WithTimeout(context.Background(), 30*time.Second)
		fileStorage, err := storage.NewS3Storage(s3Ctx, cfg.S3, zlog.Named("s3"))
		cancelS3()
		if err != nil {
			zlog.Fatal("Failed to initialize S3 storage", zap.Error(err))
		}
		exportService = service.NewExportService(episodeService, fileStorage, cfg.Simulation.ExportPrefix, cfg.S3.PresignExpiry, zlog.Named("export"))
	} else {
		zlog.Warn("S3 bucket not configured; trajectory export disabled")
	}

	// --- Gin Engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(zlog.Named("http")))
	api.SetupRoutes(router, authService, episodeService, exportService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zlog.Info("Server starting", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("ListenAndServe error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exiting.")
}
