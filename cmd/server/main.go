package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/config"
	catalogrepo "github.com/mamadbah2/stockcheck/internal/repository/catalog"
	"github.com/mamadbah2/stockcheck/internal/repository/extract"
	"github.com/mamadbah2/stockcheck/internal/repository/ledger"
	"github.com/mamadbah2/stockcheck/internal/repository/mongodb"
	"github.com/mamadbah2/stockcheck/internal/repository/sheets"
	"github.com/mamadbah2/stockcheck/internal/scheduler"
	"github.com/mamadbah2/stockcheck/internal/server/handlers"
	"github.com/mamadbah2/stockcheck/internal/server/router"
	catalogsvc "github.com/mamadbah2/stockcheck/internal/service/catalog"
	"github.com/mamadbah2/stockcheck/internal/service/conversation"
	reportingsvc "github.com/mamadbah2/stockcheck/internal/service/reporting"
	telegramsvc "github.com/mamadbah2/stockcheck/internal/service/telegram"
	telegramclient "github.com/mamadbah2/stockcheck/pkg/clients/telegram"
	"github.com/mamadbah2/stockcheck/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	loc := cfg.Reporting.Location()

	catalogStore := catalogrepo.NewFileStore(cfg.Catalog.Path, baseLogger.Named("repo.catalog"))
	catalogService, err := catalogsvc.NewService(catalogStore, baseLogger.Named("svc.catalog"))
	if err != nil {
		baseLogger.Fatal("failed to load product catalog", zap.Error(err), zap.String("path", cfg.Catalog.Path))
	}

	extractSource, err := extract.NewSource(cfg.Extract.Dir, cfg.Extract.MaxAge, baseLogger.Named("repo.extract"))
	if err != nil {
		baseLogger.Fatal("failed to init extract source", zap.Error(err))
	}

	var stockLedger ledger.Ledger
	switch cfg.Ledger.Backend {
	case config.LedgerBackendSQLite:
		sqliteLedger, err := ledger.NewSQLiteLedger(cfg.Ledger.SQLitePath)
		if err != nil {
			baseLogger.Fatal("failed to open sqlite ledger", zap.Error(err))
		}
		defer sqliteLedger.Close()
		stockLedger = sqliteLedger
	default:
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		stockLedger = ledger.NewSheetLedger(sheetsRepo, cfg.Sheets.LedgerSheet, baseLogger.Named("repo.ledger"))
	}
	baseLogger.Info("ledger backend ready", zap.String("backend", cfg.Ledger.Backend))

	reportingService := reportingsvc.NewService(stockLedger, catalogService, loc, baseLogger.Named("svc.reporting"))

	tgClient := telegramclient.NewClient(cfg.Telegram)

	deps := conversation.Dependencies{
		Catalog:   catalogService,
		Extracts:  extractSource,
		Ledger:    stockLedger,
		History:   reportingService,
		Messenger: telegramsvc.NewSender(tgClient),
	}

	if cfg.MongoDB.URI != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoRepo, err := mongodb.NewMongoDBRepository(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		cancel()
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		deps.Archiver = mongoRepo
		baseLogger.Info("reconciliation archive enabled", zap.String("db", cfg.MongoDB.DBName))
	} else {
		baseLogger.Warn("MONGODB_URI missing, reconciliation archive disabled")
	}

	conversationService := conversation.NewService(conversation.Config{
		AdminID:      cfg.Telegram.AdminID,
		NotifyChatID: cfg.Telegram.NotifyChatID,
		Location:     loc,
	}, deps, baseLogger.Named("svc.conversation"))

	messagingSvc := telegramsvc.NewBotService(cfg.Telegram, tgClient, conversationService, baseLogger.Named("svc.telegram"))

	registerCtx, cancelRegister := context.WithTimeout(context.Background(), 10*time.Second)
	if err := messagingSvc.RegisterCommands(registerCtx); err != nil {
		baseLogger.Warn("failed to register bot commands", zap.Error(err))
	}
	cancelRegister()

	webhookHandler := handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.telegram"))
	engine := router.New(router.Options{WebhookPath: cfg.Server.WebhookPath}, webhookHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Reporting.CronSchedule, loc, cfg.Telegram.NotifyChatID, reportingService, messagingSvc, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
