package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drogafarto-web/docfiscal/internal/api"
	"github.com/drogafarto-web/docfiscal/internal/api/handlers"
	"github.com/drogafarto-web/docfiscal/internal/recognition"
	"github.com/drogafarto-web/docfiscal/internal/repository"
	"github.com/drogafarto-web/docfiscal/internal/service"
	"github.com/drogafarto-web/docfiscal/internal/storage"
	"github.com/drogafarto-web/docfiscal/pkg/auth"
	"github.com/drogafarto-web/docfiscal/pkg/config"
	"github.com/drogafarto-web/docfiscal/pkg/logger"
	"github.com/drogafarto-web/docfiscal/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting docfiscal service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	payableRepo := repository.NewPayableRepository(db, appLogger)
	revenueRepo := repository.NewRevenueRepository(db, appLogger)
	invoiceRepo := repository.NewInvoiceRepository(db, appLogger)

	// Initialize file storage
	store, uploadDir, err := buildFileStore(&cfg.Storage, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)
	recognizer := recognition.NewClient(&cfg.Recognition, appLogger)
	intakeService := service.NewIntakeService(&cfg.Intake, store, recognizer, appLogger)
	commitService := service.NewCommitService(payableRepo, revenueRepo, invoiceRepo, appLogger)
	confirmService := service.NewConfirmService(intakeService, commitService, appLogger)
	matchingService := service.NewMatchingService(&cfg.Matching, invoiceRepo, payableRepo, appLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, appLogger)
	intakeHandler := handlers.NewIntakeHandler(intakeService, confirmService, appLogger)
	invoiceHandler := handlers.NewInvoiceHandler(matchingService, commitService, appLogger)

	// Setup router
	app := api.SetupRouter(authHandler, intakeHandler, invoiceHandler, jwtManager, appLogger, uploadDir)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}

// buildFileStore selects the storage backend. The returned uploadDir is empty
// for S3: stored files are served via presigned URLs, not a static route.
func buildFileStore(cfg *config.StorageConfig, appLogger *zap.Logger) (storage.FileStore, string, error) {
	switch cfg.Backend {
	case "s3":
		store, err := storage.NewS3Store(cfg.Endpoint, cfg.Region, cfg.Bucket, cfg.AccessKey, cfg.SecretKey)
		if err != nil {
			return nil, "", err
		}
		appLogger.Info("Using S3 file storage", zap.String("bucket", cfg.Bucket))
		return store, "", nil
	default:
		appLogger.Info("Using disk file storage", zap.String("dir", cfg.UploadDir))
		return storage.NewDiskStore(cfg.UploadDir, appLogger), cfg.UploadDir, nil
	}
}
