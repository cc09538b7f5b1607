package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scope selects which slice of a user's ledger a snapshot series covers.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopePortfolio Scope = "portfolio"
)

// StorageScale is the fixed decimal scale money fields are rounded to when a
// snapshot row is written. In-memory computation stays unrounded.
const StorageScale int32 = 2

// SnapshotCell holds one reporting currency's view of a snapshot day.
// Value and the flow fields are nil when the day could not be converted into
// this currency (missing FX); IsPartial and the counters say why.
type SnapshotCell struct {
	Value            *decimal.Decimal `json:"value"`
	ExternalCashflow *decimal.Decimal `json:"external_cashflow"`
	ImplicitTransfer *decimal.Decimal `json:"implicit_transfer"`
	IsPartial        bool             `json:"is_partial"`
	MissingQuotes    int              `json:"missing_quotes"`
	MissingFx        int              `json:"missing_fx"`
	AsOf             time.Time        `json:"as_of,omitempty"`
}

// SnapshotRow is one persisted day of portfolio valuation, carrying a cell
// per supported reporting currency. One row per (user, scope, portfolio,
// bucket date); rebuilds replace rows wholesale for the recomputed span.
type SnapshotRow struct {
	UserID      string                    `json:"user_id"`
	Scope       Scope                     `json:"scope"`
	PortfolioID string                    `json:"portfolio_id,omitempty"`
	BucketDate  Day                       `json:"bucket_date"`
	Cells       map[Currency]SnapshotCell `json:"cells"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// RoundForStorage rounds all money fields to StorageScale. Applied once, at
// the persistence boundary.
func (r *SnapshotRow) RoundForStorage() {
	for c, cell := range r.Cells {
		if cell.Value != nil {
			v := cell.Value.Round(StorageScale)
			cell.Value = &v
		}
		if cell.ExternalCashflow != nil {
			v := cell.ExternalCashflow.Round(StorageScale)
			cell.ExternalCashflow = &v
		}
		if cell.ImplicitTransfer != nil {
			v := cell.ImplicitTransfer.Round(StorageScale)
			cell.ImplicitTransfer = &v
		}
		r.Cells[c] = cell
	}
}

// RebuildStatus is the lifecycle state of a dirty-range rebuild.
type RebuildStatus string

const (
	RebuildIdle    RebuildStatus = "idle"
	RebuildQueued  RebuildStatus = "queued"
	RebuildRunning RebuildStatus = "running"
	RebuildFailed  RebuildStatus = "failed"
)

// RebuildState is the persisted source of truth for what still needs
// recomputation. One row per (user, scope, portfolio); created on the first
// dirty event and never deleted. DirtyFrom only ever moves earlier until a
// completed rebuild clears it.
type RebuildState struct {
	ID             string        `json:"state_id"`
	UserID         string        `json:"user_id"`
	Scope          Scope         `json:"scope"`
	PortfolioID    string        `json:"portfolio_id,omitempty"`
	DirtyFrom      Day           `json:"dirty_from,omitempty"`
	FromDate       Day           `json:"from_date,omitempty"`
	ToDate         Day           `json:"to_date,omitempty"`
	ProcessedUntil Day           `json:"processed_until,omitempty"`
	Status         RebuildStatus `json:"status"`
	Message        string        `json:"message,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SeriesKey is the storage key for a rebuild state or snapshot series.
func SeriesKey(userID string, scope Scope, portfolioID string) string {
	if scope == ScopePortfolio {
		return userID + ":" + string(scope) + ":" + portfolioID
	}
	return userID + ":" + string(scope)
}

// Key returns the state's series key.
func (s *RebuildState) Key() string {
	return SeriesKey(s.UserID, s.Scope, s.PortfolioID)
}
