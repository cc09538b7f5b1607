// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/mstolarski/folio/internal/models"
)

// StorageManager coordinates all storage backends.
type StorageManager interface {
	UserStore() UserStore
	TransactionStore() TransactionStore
	AnchorStore() AnchorStore
	SnapshotStore() SnapshotStore
	RebuildStateStore() RebuildStateStore
	MarketStore() MarketStore

	Close() error
}

// UserStore manages user accounts.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error
}

// TransactionStore manages the append-only ledger. List returns entries
// ordered by (trade_date, seq) ascending, filtered by scope: ScopeAll returns
// the whole ledger, ScopePortfolio only the named portfolio's entries.
type TransactionStore interface {
	Add(ctx context.Context, tx *models.Transaction) error
	Get(ctx context.Context, userID, id string) (*models.Transaction, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, scope models.Scope, portfolioID string, until models.Day) ([]models.Transaction, error)
	// NextSeq returns the next insertion-order number for the user's ledger.
	NextSeq(ctx context.Context, userID string) (int64, error)
}

// AnchorStore manages custom instrument anchors.
type AnchorStore interface {
	GetAnchor(ctx context.Context, userID, instrumentID string) (*models.CustomInstrumentAnchor, error)
	SaveAnchor(ctx context.Context, anchor *models.CustomInstrumentAnchor) error
	ListAnchors(ctx context.Context, userID string) ([]models.CustomInstrumentAnchor, error)
}

// SnapshotStore manages persisted daily snapshot rows.
type SnapshotStore interface {
	// ReplaceRange atomically replaces all rows for the series whose bucket
	// date falls in [from, to] with the given rows (delete-then-insert; a
	// rebuild rewrites multiple days together, so upsert is not enough).
	ReplaceRange(ctx context.Context, userID string, scope models.Scope, portfolioID string, from, to models.Day, rows []models.SnapshotRow) error

	// List returns rows for a series ordered by bucket date ascending. A
	// limit > 0 bounds the result to the most recent N days.
	List(ctx context.Context, userID string, scope models.Scope, portfolioID string, limit int) ([]models.SnapshotRow, error)
}

// RebuildStateStore manages the per-series rebuild state row.
type RebuildStateStore interface {
	// Get returns the state for a series, or nil when none exists yet.
	Get(ctx context.Context, userID string, scope models.Scope, portfolioID string) (*models.RebuildState, error)

	// Save upserts the state, stamping UpdatedAt on the passed value so
	// callers can detect concurrent writers by comparing stamps.
	Save(ctx context.Context, state *models.RebuildState) error
}

// MarketStore persists cached market data: live quotes and FX rates with
// fetched-at freshness, plus historical daily price and FX series.
type MarketStore interface {
	// Live quote cache, keyed by (provider, instrument).
	GetQuotes(ctx context.Context, instrumentIDs []string) ([]models.Quote, error)
	SaveQuotes(ctx context.Context, quotes []models.Quote) error

	// Live FX cache, keyed by (provider, currency pair).
	GetFxRates(ctx context.Context, pairs []models.CurrencyPair) ([]models.FxRate, error)
	SaveFxRates(ctx context.Context, rates []models.FxRate) error

	// Historical daily series, ordered by date ascending.
	GetDailyPrices(ctx context.Context, instrumentID string, from, to models.Day) ([]models.DailyPrice, error)
	SaveDailyPrices(ctx context.Context, prices []models.DailyPrice) error
	GetDailyFxRates(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error)
	SaveDailyFxRates(ctx context.Context, rates []models.DailyFxRate) error
}
