// Package marketdata is the read-through market data cache: live quotes and
// FX with TTL freshness, historical daily series with as-of semantics, and a
// forward-only range cursor for rebuild passes.
package marketdata

import (
	"sort"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/models"
)

// PriceAsOf resolves a daily price with as-of semantics: the most recent row
// with date ≤ the requested date, never a future row. The series must be
// sorted ascending by date.
func PriceAsOf(series []models.DailyPrice, date models.Day) (models.AsOfPrice, bool) {
	idx := lastAtOrBefore(len(series), date, func(i int) models.Day { return series[i].Date })
	if idx < 0 {
		return models.AsOfPrice{}, false
	}
	return models.AsOfPrice{
		DailyPrice:                series[idx],
		FilledFromPreviousSession: series[idx].Date != date,
	}, true
}

// FxAsOf resolves a daily FX rate with as-of semantics.
func FxAsOf(series []models.DailyFxRate, date models.Day) (models.AsOfFxRate, bool) {
	idx := lastAtOrBefore(len(series), date, func(i int) models.Day { return series[i].Date })
	if idx < 0 {
		return models.AsOfFxRate{}, false
	}
	return models.AsOfFxRate{
		DailyFxRate:               series[idx],
		FilledFromPreviousSession: series[idx].Date != date,
	}, true
}

// lastAtOrBefore binary-searches for the index of the last element with
// date ≤ target, or -1.
func lastAtOrBefore(n int, target models.Day, dateAt func(int) models.Day) int {
	// First index with date > target; the answer sits just before it.
	idx := sort.Search(n, func(i int) bool { return dateAt(i).After(target) })
	return idx - 1
}

// covers reports whether a sorted list of dates covers [from, to] within the
// gap tolerance: the first point within tolerance of from, the last within
// tolerance of to, and no two consecutive points further apart than the
// tolerance. Weekends and holiday runs pass; real holes force a re-fetch.
func covers(dates []models.Day, from, to models.Day, tolerance int) bool {
	if len(dates) == 0 {
		return false
	}
	if models.DaysBetween(from, dates[0]) > tolerance {
		return false
	}
	if models.DaysBetween(dates[len(dates)-1], to) > tolerance {
		return false
	}
	for i := 1; i < len(dates); i++ {
		if models.DaysBetween(dates[i-1], dates[i]) > tolerance {
			return false
		}
	}
	return true
}

func priceDates(series []models.DailyPrice) []models.Day {
	dates := make([]models.Day, len(series))
	for i, p := range series {
		dates[i] = p.Date
	}
	return dates
}

func fxDates(series []models.DailyFxRate) []models.Day {
	dates := make([]models.Day, len(series))
	for i, r := range series {
		dates[i] = r.Date
	}
	return dates
}

// SeriesCovers reports whether a cached daily price series covers the range
// within the default gap tolerance.
func SeriesCovers(series []models.DailyPrice, from, to models.Day) bool {
	return covers(priceDates(series), from, to, common.CoverageGapTolerance)
}

// FxSeriesCovers reports whether a cached daily FX series covers the range.
func FxSeriesCovers(series []models.DailyFxRate, from, to models.Day) bool {
	return covers(fxDates(series), from, to, common.CoverageGapTolerance)
}
