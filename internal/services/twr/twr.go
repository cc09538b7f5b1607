// Package twr turns a daily snapshot series into time-weighted returns.
// Cash flows are subtracted from each day's value before comparing against
// the previous valued day, so deposits and withdrawals do not show up as
// performance.
package twr

import (
	"github.com/shopspring/decimal"

	"github.com/mstolarski/folio/internal/models"
)

var one = decimal.NewFromInt(1)

// Point is one day of input to the calculator: the day's closing value and
// the external/implicit flows that landed on it, all in one reporting
// currency. Nil fields mean the day could not be converted.
type Point struct {
	Date             models.Day
	Value            *decimal.Decimal
	ExternalCashflow *decimal.Decimal
	ImplicitTransfer *decimal.Decimal
	IsPartial        bool
}

// PointsFromSnapshots extracts the series for one reporting currency from
// persisted snapshot rows. Rows without a cell for the currency are skipped.
func PointsFromSnapshots(rows []models.SnapshotRow, currency models.Currency) []Point {
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		cell, ok := row.Cells[currency]
		if !ok {
			continue
		}
		points = append(points, Point{
			Date:             row.BucketDate,
			Value:            cell.Value,
			ExternalCashflow: cell.ExternalCashflow,
			ImplicitTransfer: cell.ImplicitTransfer,
			IsPartial:        cell.IsPartial,
		})
	}
	return points
}

// ComputeDailyReturns computes the daily and cumulative time-weighted return
// for an ascending series of points.
//
// Day i's return is (V_i - flow_i - V_prev) / V_prev, where flow_i is the
// sum of the day's external cashflow and implicit transfer, and V_prev is
// the most recent preceding day with a non-nil value. A day whose value or
// either flow is nil gets a nil return. Cumulative compounds geometrically
// and restarts after any nil return; compounding never bridges a gap.
func ComputeDailyReturns(points []Point) []models.DailyReturn {
	out := make([]models.DailyReturn, 0, len(points))

	var prevValue *decimal.Decimal
	prevPartial := false
	gapPartial := false // partial flag seen on skipped (nil-value) days since prevValue
	var cumulative *decimal.Decimal

	for _, p := range points {
		dr := models.DailyReturn{Date: p.Date, IsPartial: p.IsPartial}

		if prevValue != nil && prevValue.Sign() != 0 &&
			p.Value != nil && p.ExternalCashflow != nil && p.ImplicitTransfer != nil {
			flow := p.ExternalCashflow.Add(*p.ImplicitTransfer)
			r := p.Value.Sub(flow).Sub(*prevValue).Div(*prevValue)
			dr.Return = &r
			dr.IsPartial = p.IsPartial || prevPartial || gapPartial

			if cumulative == nil {
				c := r
				cumulative = &c
			} else {
				c := one.Add(*cumulative).Mul(one.Add(r)).Sub(one)
				cumulative = &c
			}
			dr.Cumulative = cumulative
		} else {
			cumulative = nil
		}

		if p.Value != nil {
			v := *p.Value
			prevValue = &v
			prevPartial = p.IsPartial
			gapPartial = false
		} else if p.IsPartial {
			gapPartial = true
		}

		out = append(out, dr)
	}

	return out
}
