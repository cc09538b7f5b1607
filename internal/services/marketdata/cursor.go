package marketdata

import (
	"github.com/mstolarski/folio/internal/models"
)

// priceSeries is one instrument's ascending daily series with a monotonic
// read position.
type priceSeries struct {
	points []models.DailyPrice
	idx    int // index of the last point with date ≤ the cursor day, or -1
}

type fxSeries struct {
	points []models.DailyFxRate
	idx    int
}

// RangeCursor answers "value as of day D" in O(1) amortized for strictly
// increasing D. Built once per rebuild session from full sorted series; each
// AdvanceTo moves every series' index forward only, so a whole rebuild scans
// each series at most once end to end.
type RangeCursor struct {
	day    models.Day
	prices map[string]*priceSeries
	fx     map[string]*fxSeries
}

// NewRangeCursor builds a cursor over per-instrument price series and
// per-pair FX series. All series must be sorted ascending by date.
func NewRangeCursor(prices map[string][]models.DailyPrice, fx map[models.CurrencyPair][]models.DailyFxRate) *RangeCursor {
	c := &RangeCursor{
		prices: make(map[string]*priceSeries, len(prices)),
		fx:     make(map[string]*fxSeries, len(fx)),
	}
	for id, series := range prices {
		c.prices[id] = &priceSeries{points: series, idx: -1}
	}
	for pair, series := range fx {
		c.fx[pair.Key()] = &fxSeries{points: series, idx: -1}
	}
	return c
}

// AdvanceTo moves every series' index forward to the last point with
// date ≤ day. Indexes never move backward; callers must advance with
// non-decreasing days.
func (c *RangeCursor) AdvanceTo(day models.Day) {
	if day.Before(c.day) {
		return
	}
	c.day = day
	for _, s := range c.prices {
		for s.idx+1 < len(s.points) && !s.points[s.idx+1].Date.After(day) {
			s.idx++
		}
	}
	for _, s := range c.fx {
		for s.idx+1 < len(s.points) && !s.points[s.idx+1].Date.After(day) {
			s.idx++
		}
	}
}

// Price returns the instrument's price as of the cursor day.
func (c *RangeCursor) Price(instrumentID string) (models.AsOfPrice, bool) {
	s, ok := c.prices[instrumentID]
	if !ok || s.idx < 0 {
		return models.AsOfPrice{}, false
	}
	p := s.points[s.idx]
	return models.AsOfPrice{
		DailyPrice:                p,
		FilledFromPreviousSession: p.Date != c.day,
	}, true
}

// FxRate returns the pair's rate as of the cursor day, falling back to the
// inverse pair's series and inverting the rate, exactly mirroring the
// cache's as-of inversion rule. Zero rates are treated as absent.
func (c *RangeCursor) FxRate(from, to models.Currency) (models.AsOfFxRate, bool) {
	if from == to {
		return models.AsOfFxRate{}, false
	}
	pair := models.CurrencyPair{From: from, To: to}

	if s, ok := c.fx[pair.Key()]; ok && s.idx >= 0 {
		r := s.points[s.idx]
		if r.Rate.Sign() > 0 {
			return models.AsOfFxRate{
				DailyFxRate:               r,
				FilledFromPreviousSession: r.Date != c.day,
			}, true
		}
	}

	if s, ok := c.fx[pair.Inverse().Key()]; ok && s.idx >= 0 {
		r := s.points[s.idx]
		if r.Rate.Sign() > 0 {
			inv := models.DailyFxRate{
				From:     r.To,
				To:       r.From,
				Date:     r.Date,
				Rate:     one.Div(r.Rate),
				Source:   models.RateSourceInverted,
				Provider: r.Provider,
			}
			return models.AsOfFxRate{
				DailyFxRate:               inv,
				FilledFromPreviousSession: r.Date != c.day,
			}, true
		}
	}

	return models.AsOfFxRate{}, false
}
