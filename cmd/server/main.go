package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/service"
	"github.com/finovate/expenseflow/internal/auth"
	"github.com/finovate/expenseflow/internal/config"
	"github.com/finovate/expenseflow/internal/infrastructure/export"
	"github.com/finovate/expenseflow/internal/infrastructure/external/exchange"
	openaiinfra "github.com/finovate/expenseflow/internal/infrastructure/external/openai"
	"github.com/finovate/expenseflow/internal/infrastructure/persistence/repository"
	"github.com/finovate/expenseflow/internal/infrastructure/persistence/sqlite"
	"github.com/finovate/expenseflow/internal/infrastructure/receipt"
	"github.com/finovate/expenseflow/internal/infrastructure/storage"
	"github.com/finovate/expenseflow/internal/infrastructure/worker"
	httpserver "github.com/finovate/expenseflow/internal/interfaces/http"
	"github.com/finovate/expenseflow/pkg/database"
	"github.com/finovate/expenseflow/pkg/utils"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = gotenv.Load()

	configPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting ExpenseFlow",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Receipts.StorageDir, 0o755); err != nil {
		logger.Fatal("Failed to create receipt storage directory", zap.Error(err))
	}

	// Repositories and transaction manager
	txManager := sqlite.NewDB(db.DB, logger)
	expenseRepo := repository.NewExpenseRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	orgRepo := repository.NewOrganizationRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	attachmentRepo := repository.NewAttachmentRepository(db.DB, logger)
	noteRepo := repository.NewNoteRepository(db.DB, logger)
	reportRepo := repository.NewReportRepository(db.DB, logger)

	// External collaborators
	rates := exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.Timeout, cfg.Exchange.CacheTTL, logger)
	fileStore := storage.NewLocalFileStore(cfg.Receipts.StorageDir, logger)

	// Background workers
	workers := worker.NewManager(logger)
	var scanQueue service.ScanQueue
	if cfg.OpenAI.Enabled {
		scanner := openaiinfra.NewReceiptScanner(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.Temperature,
			receipt.NewPDFRenderer(),
			logger,
		)
		scanWorker := worker.NewScanWorker(worker.ScanWorkerConfig{
			QueueSize:   cfg.Receipts.ScanQueueSize,
			Concurrency: cfg.Receipts.ScanConcurrency,
			ScanTimeout: cfg.Receipts.ScanTimeout,
		}, attachmentRepo, scanner, fileStore, logger)
		workers.Register(scanWorker)
		scanQueue = scanWorker
	} else {
		logger.Info("Receipt scanning disabled")
	}

	// Application services
	normalizer := service.NewCurrencyNormalizer(rates, logger)
	expenseService := service.NewExpenseService(
		expenseRepo, userRepo, orgRepo, historyRepo, noteRepo, txManager, normalizer, logger)
	orgService := service.NewOrganizationService(orgRepo, userRepo, txManager, logger)
	userService := service.NewUserService(userRepo, orgRepo, logger)
	receiptService := service.NewReceiptService(
		attachmentRepo, expenseRepo, fileStore, scanQueue, cfg.Receipts.MaxUploadBytes, logger)
	exporter := export.NewExcelExporter(logger)
	reportService := service.NewReportService(reportRepo, exporter, logger)

	// Auth
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	authenticator := auth.NewAuthenticator(userRepo, tokens)

	// HTTP server
	handlers := httpserver.NewHandlers(
		authenticator, expenseService, orgService, userService, receiptService, reportService, logger)
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, tokens, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	if err := workers.StopAll(); err != nil {
		logger.Error("Worker shutdown reported errors", zap.Error(err))
	}

	logger.Info("ExpenseFlow stopped")
}
