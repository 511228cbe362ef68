package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/config"
	"github.com/kamikazebr/therapy-records/internal/server/logging"
	"github.com/kamikazebr/therapy-records/internal/server/services"
	"github.com/kamikazebr/therapy-records/internal/server/storage"
)

const serviceName = "therapy-server"

// app holds the wired services shared by the serve and admin commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *storage.DB

	accounts  *services.AccountService
	gate      *services.LoginGate
	snapshots *services.SnapshotExporter
	records   *services.RecordService
	forwarder *services.Forwarder

	registry *prometheus.Registry
}

func newApp(ctx context.Context) (*app, error) {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Debug(".env file not found, using environment variables")
	}

	logger.Info("connecting to database", zap.String("driver", cfg.Database.Driver))
	db, err := storage.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	credentials, err := services.NewCredentials(cfg.CredentialMode)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Initialize repositories
	accountRepo := storage.NewAccountRepository(db)
	recordRepo := storage.NewRecordRepository(db)
	var mirror *storage.AccountMirror
	if cfg.AccountMirrorPath != "" {
		mirror = storage.NewAccountMirror(cfg.AccountMirrorPath)
	}

	// Initialize services
	registry := prometheus.NewRegistry()
	metrics := services.NewMetrics(registry)

	accounts := services.NewAccountService(accountRepo, mirror, credentials, logger)
	gate := services.NewLoginGate(accounts, credentials, logger)
	gate.SetMetrics(metrics)

	snapshots := services.NewSnapshotExporter(recordRepo, cfg.SnapshotPath, logger)
	snapshots.SetMetrics(metrics)

	records := services.NewRecordService(recordRepo, snapshots, logger)
	records.SetMetrics(metrics)

	forwarder := services.NewForwarder(cfg.Forward.URL, cfg.Forward.Timeout, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		accounts:  accounts,
		gate:      gate,
		snapshots: snapshots,
		records:   records,
		forwarder: forwarder,
		registry:  registry,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.logger.Sync()
}
