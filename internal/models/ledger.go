package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionSide is the direction of a ledger entry.
type TransactionSide string

const (
	SideBuy  TransactionSide = "buy"
	SideSell TransactionSide = "sell"
)

// LegRole distinguishes the legs of a grouped economic event. A funded
// purchase has an asset leg (the instrument) and a cash leg (the money that
// paid for it), linked by GroupID.
type LegRole string

const (
	LegAsset LegRole = "asset"
	LegCash  LegRole = "cash"
)

// CashflowType tags explicit deposits and withdrawals on currency entries.
type CashflowType string

const (
	CashflowDeposit    CashflowType = "deposit"
	CashflowWithdrawal CashflowType = "withdrawal"
)

// InstrumentKind classifies what a ledger entry or holding refers to.
type InstrumentKind string

const (
	// KindSecurity is a quoted instrument priced by the market data provider.
	KindSecurity InstrumentKind = "security"
	// KindCurrency is the cash pseudo-instrument, always worth unit price in
	// its own currency.
	KindCurrency InstrumentKind = "currency"
	// KindCustom is a private, non-quoted asset priced from its anchor.
	KindCustom InstrumentKind = "custom"
)

// Transaction is an immutable, append-only ledger entry. Replay order is
// (TradeDate, Seq); Seq is assigned on insert and never reused.
type Transaction struct {
	ID           string          `json:"transaction_id"`
	UserID       string          `json:"user_id"`
	PortfolioID  string          `json:"portfolio_id,omitempty"`
	InstrumentID string          `json:"instrument_id"`
	Kind         InstrumentKind  `json:"kind"`
	Symbol       string          `json:"symbol,omitempty"`
	Name         string          `json:"name,omitempty"`
	Currency     Currency        `json:"currency"`
	TradeDate    Day             `json:"trade_date"`
	Side         TransactionSide `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Fee          decimal.Decimal `json:"fee"`
	LegRole      LegRole         `json:"leg_role,omitempty"`
	CashflowType CashflowType    `json:"cashflow_type,omitempty"`
	GroupID      string          `json:"group_id,omitempty"`
	// AnnualRatePct sets the compounding rate of a custom instrument's
	// anchor. Only read on custom asset legs; nil preserves the stored rate.
	AnnualRatePct *decimal.Decimal `json:"annual_rate_pct,omitempty"`
	Seq          int64           `json:"seq"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Gross returns quantity × price before fees.
func (t Transaction) Gross() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// IsCurrency reports whether the entry moves the cash pseudo-instrument.
func (t Transaction) IsCurrency() bool {
	return t.Kind == KindCurrency
}

// CustomInstrumentAnchor is the (date, price) pair from which a private
// asset's compounding value model is computed. The anchor moves forward to
// the latest asset-leg transaction for the instrument.
type CustomInstrumentAnchor struct {
	UserID        string          `json:"user_id"`
	InstrumentID  string          `json:"instrument_id"`
	AnchorDate    Day             `json:"anchor_date"`
	AnchorPrice   decimal.Decimal `json:"anchor_price"`
	AnnualRatePct decimal.Decimal `json:"annual_rate_pct"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PriceOn models the asset's price as the anchor price compounded daily at
// the fixed annual rate: anchor × (1 + rate/100)^(days/365). Days before the
// anchor are priced at the anchor itself. Returns false when the model cannot
// be evaluated (e.g. rate below -100%).
func (a CustomInstrumentAnchor) PriceOn(d Day) (decimal.Decimal, bool) {
	days := DaysBetween(a.AnchorDate, d)
	if days <= 0 {
		return a.AnchorPrice, true
	}
	base := decimal.NewFromInt(1).Add(a.AnnualRatePct.Div(decimal.NewFromInt(100)))
	if base.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	exp := decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(365))
	factor, err := base.PowWithPrecision(exp, 16)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return a.AnchorPrice.Mul(factor), true
}
