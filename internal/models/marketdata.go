package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSource records how an FX rate was obtained.
type RateSource string

const (
	RateSourceDirect   RateSource = "direct"
	RateSourceInverted RateSource = "inverted"
)

// Quote is a live price for an instrument in its native currency.
type Quote struct {
	InstrumentID string           `json:"instrument_id"`
	Symbol       string           `json:"symbol"`
	Currency     Currency         `json:"currency"`
	Price        decimal.Decimal  `json:"price"`
	DayChange    *decimal.Decimal `json:"day_change,omitempty"`
	DayChangePct *decimal.Decimal `json:"day_change_pct,omitempty"`
	AsOf         time.Time        `json:"as_of"`
	FetchedAt    time.Time        `json:"fetched_at"`
	Provider     string           `json:"provider,omitempty"`
}

// FxRate is a live conversion rate between two currencies.
type FxRate struct {
	From      Currency        `json:"from_currency"`
	To        Currency        `json:"to_currency"`
	Rate      decimal.Decimal `json:"rate"`
	AsOf      time.Time       `json:"as_of"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    RateSource      `json:"source"`
	Provider  string          `json:"provider,omitempty"`
}

// Pair returns the rate's currency pair.
func (r FxRate) Pair() CurrencyPair {
	return CurrencyPair{From: r.From, To: r.To}
}

// Inverted returns the algebraic inverse of the rate (1/rate) with direction
// reversed and Source marked inverted. Callers must reject zero rates first.
func (r FxRate) Inverted() FxRate {
	return FxRate{
		From:      r.To,
		To:        r.From,
		Rate:      decimal.NewFromInt(1).Div(r.Rate),
		AsOf:      r.AsOf,
		FetchedAt: r.FetchedAt,
		Source:    RateSourceInverted,
		Provider:  r.Provider,
	}
}

// DailyPrice is a historical close keyed by calendar date.
type DailyPrice struct {
	InstrumentID string          `json:"instrument_id"`
	Symbol       string          `json:"symbol,omitempty"`
	Date         Day             `json:"date"`
	Price        decimal.Decimal `json:"price"`
	Currency     Currency        `json:"currency"`
	Provider     string          `json:"provider,omitempty"`
}

// DailyFxRate is a historical conversion rate keyed by calendar date.
type DailyFxRate struct {
	From     Currency        `json:"from_currency"`
	To       Currency        `json:"to_currency"`
	Date     Day             `json:"date"`
	Rate     decimal.Decimal `json:"rate"`
	Source   RateSource      `json:"source"`
	Provider string          `json:"provider,omitempty"`
}

// Pair returns the rate's currency pair.
func (r DailyFxRate) Pair() CurrencyPair {
	return CurrencyPair{From: r.From, To: r.To}
}

// AsOfPrice is a daily price resolved with as-of semantics: the most recent
// row with date ≤ the requested date. FilledFromPreviousSession is true when
// the resolved row predates the requested day (weekend, holiday, gap).
type AsOfPrice struct {
	DailyPrice
	FilledFromPreviousSession bool `json:"is_filled_from_previous_session"`
}

// AsOfFxRate is a daily FX rate resolved with as-of semantics.
type AsOfFxRate struct {
	DailyFxRate
	FilledFromPreviousSession bool `json:"is_filled_from_previous_session"`
}
