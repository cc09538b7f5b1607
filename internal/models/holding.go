package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a position derived from ledger replay at a point in time. It is
// ephemeral and never persisted directly.
type Holding struct {
	InstrumentID string          `json:"instrument_id"`
	Kind         InstrumentKind  `json:"kind"`
	Symbol       string          `json:"symbol,omitempty"`
	Name         string          `json:"name,omitempty"`
	Currency     Currency        `json:"currency"`
	Quantity     decimal.Decimal `json:"quantity"`
	Provider     string          `json:"provider,omitempty"`
}

// MissingReason marks why a holding could not be valued.
type MissingReason string

const (
	MissingQuote MissingReason = "missing_quote"
	MissingFx    MissingReason = "missing_fx"
)

// HoldingValuation is the per-holding output of the valuation engine.
// Value, Weight and the day-change fields are nil when the holding could not
// be valued; MissingReason says why.
type HoldingValuation struct {
	Holding       Holding          `json:"holding"`
	Value         *decimal.Decimal `json:"value"`
	Weight        *decimal.Decimal `json:"weight"`
	DayChange     *decimal.Decimal `json:"day_change,omitempty"`
	DayChangePct  *decimal.Decimal `json:"day_change_pct,omitempty"`
	MissingReason MissingReason    `json:"missing_reason,omitempty"`
}

// PortfolioSummary is the valuation engine's aggregate output. TotalValue is
// nil only when zero holdings were valued; otherwise it is the partial sum of
// everything that could be valued. AsOf is the earliest timestamp among all
// quotes and rates actually used; the summary is only as fresh as its
// stalest input.
type PortfolioSummary struct {
	BaseCurrency  Currency           `json:"base_currency"`
	TotalValue    *decimal.Decimal   `json:"total_value"`
	IsPartial     bool               `json:"is_partial"`
	MissingQuotes int                `json:"missing_quotes"`
	MissingFx     int                `json:"missing_fx"`
	AsOf          time.Time          `json:"as_of,omitempty"`
	Holdings      []HoldingValuation `json:"holdings"`
}
