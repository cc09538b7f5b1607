// Package app wires configuration, storage, clients and services into the
// shared core used by cmd/folio-server.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mstolarski/folio/internal/clients/eodhd"
	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/services/ledger"
	"github.com/mstolarski/folio/internal/services/marketdata"
	"github.com/mstolarski/folio/internal/services/rebuild"
	"github.com/mstolarski/folio/internal/services/snapshot"
	"github.com/mstolarski/folio/internal/services/valuation"
	storage "github.com/mstolarski/folio/internal/storage/surrealdb"
)

// App holds all initialized services, clients and storage.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	Storage           interfaces.StorageManager
	MarketClient      *eodhd.Client
	MarketDataService interfaces.MarketDataService
	LedgerService     interfaces.LedgerService
	RebuildService    interfaces.RebuildService
	SnapshotService   interfaces.SnapshotService
	ValuationService  interfaces.ValuationService
	StartupTime       time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Config resolution: provided path, FOLIO_CONFIG, binary dir, dev fallback.
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Clients.EODHD.APIKey == "" {
		logger.Warn().Msg("EODHD API key not configured, market data fetches will fail")
	}
	marketClient := eodhd.NewClient(config.Clients.EODHD.APIKey,
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
		eodhd.WithLogger(logger),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
	)

	marketDataService := marketdata.NewService(storageManager.MarketStore(), marketClient, logger)
	rebuildService := rebuild.NewService(
		storageManager.RebuildStateStore(),
		storageManager.SnapshotStore(),
		storageManager.TransactionStore(),
		storageManager.AnchorStore(),
		marketDataService,
		&config.Rebuild,
		logger,
	)
	ledgerService := ledger.NewService(
		storageManager.TransactionStore(),
		storageManager.AnchorStore(),
		rebuildService,
		logger,
	)
	snapshotService := snapshot.NewService(storageManager.SnapshotStore(), logger)
	valuationService := valuation.NewService(
		storageManager.TransactionStore(),
		storageManager.AnchorStore(),
		marketDataService,
		logger,
	)

	app := &App{
		Config:            config,
		Logger:            logger,
		Storage:           storageManager,
		MarketClient:      marketClient,
		MarketDataService: marketDataService,
		LedgerService:     ledgerService,
		RebuildService:    rebuildService,
		SnapshotService:   snapshotService,
		ValuationService:  valuationService,
		StartupTime:       startupStart,
	}

	logger.Info().
		Str("version", common.GetBuildInfo().String()).
		Str("environment", config.Environment).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")

	return app, nil
}

// Close releases the app's resources.
func (a *App) Close() error {
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
