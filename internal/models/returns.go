package models

import "github.com/shopspring/decimal"

// DailyReturn is one day of the time-weighted return series. Return is nil
// when the day could not be computed (missing value or flow); a nil Return
// breaks the compounding chain and Cumulative restarts from the next valid
// day.
type DailyReturn struct {
	Date       Day              `json:"date"`
	Return     *decimal.Decimal `json:"return"`
	Cumulative *decimal.Decimal `json:"cumulative"`
	IsPartial  bool             `json:"is_partial"`
}
