package interfaces

import (
	"context"
	"time"

	"github.com/mstolarski/folio/internal/models"
)

// MarketDataService is the read-through market data cache: cached rows are
// served while fresh, stale or missing data is fetched from the provider and
// persisted.
type MarketDataService interface {
	// GetQuotes returns live quotes keyed by instrument ID. Instruments the
	// provider could not price are absent; a provider failure only fails
	// entries that had no usable cached row.
	GetQuotes(ctx context.Context, holdings []models.Holding) (map[string]models.Quote, error)

	// GetFxRates returns live rates keyed by pair key, resolved direct-first
	// then inverted.
	GetFxRates(ctx context.Context, pairs []models.CurrencyPair) (map[string]models.FxRate, error)

	// DailyPriceSeries returns the cached daily close series for an
	// instrument over [from, to], fetching the full range from the provider
	// when the cached series does not cover it.
	DailyPriceSeries(ctx context.Context, instrumentID, symbol string, from, to models.Day) ([]models.DailyPrice, error)

	// DailyFxSeries is DailyPriceSeries for a currency pair. Only direct
	// rows are returned; callers invert on lookup.
	DailyFxSeries(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error)
}

// LedgerService manages the transaction ledger. Every mutation marks the
// affected snapshot series dirty at the entry's trade date.
type LedgerService interface {
	AddTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	ListTransactions(ctx context.Context, userID string, scope models.Scope, portfolioID string) ([]models.Transaction, error)
}

// RunOptions bounds a single rebuild invocation. The caller supplies both
// knobs; the UI-facing layer keeps them small so each request stays bounded.
type RunOptions struct {
	MaxDaysPerRun int
	TimeBudget    time.Duration
}

// RebuildService owns the dirty-range snapshot rebuild state machine.
type RebuildService interface {
	// MarkDirty merges the date into the series' dirty range (min dirty-from,
	// max to-date) and queues it unless a worker is already running.
	MarkDirty(ctx context.Context, userID string, scope models.Scope, portfolioID string, date models.Day) error

	// RunStep executes at most one bounded chunk loop and returns the
	// resulting state. A concurrent owner makes it a no-op.
	RunStep(ctx context.Context, userID string, scope models.Scope, portfolioID string, opts RunOptions) (*models.RebuildState, error)

	// Status returns the current state without running anything.
	Status(ctx context.Context, userID string, scope models.Scope, portfolioID string) (*models.RebuildState, error)
}

// SnapshotService serves the persisted snapshot series and derived outputs.
type SnapshotService interface {
	// GetSeries returns ordered snapshot rows; days > 0 bounds the result.
	GetSeries(ctx context.Context, userID string, scope models.Scope, portfolioID string, days int) ([]models.SnapshotRow, error)

	// GetReturns computes daily and cumulative time-weighted returns from
	// the persisted series.
	GetReturns(ctx context.Context, userID string, scope models.Scope, portfolioID string, currency models.Currency, days int) ([]models.DailyReturn, error)

	// RenderValueChart renders the value series as a PNG line chart.
	RenderValueChart(ctx context.Context, userID string, scope models.Scope, portfolioID string, currency models.Currency, days int) ([]byte, error)
}

// ValuationService values current holdings with live market data.
type ValuationService interface {
	// Summary replays the ledger to today's holdings and values them in the
	// base currency, degrading to a partial result when data is missing.
	Summary(ctx context.Context, userID string, scope models.Scope, portfolioID string, base models.Currency) (*models.PortfolioSummary, error)
}
