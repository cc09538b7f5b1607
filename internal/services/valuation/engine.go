// Package valuation converts holdings plus market data into base-currency
// totals with missing-data accounting.
package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mstolarski/folio/internal/models"
)

// ResolveRate finds a conversion rate in a map keyed by pair key, trying the
// direct pair first and falling back to the algebraic inverse. A rate of
// exactly zero is treated as absent.
func ResolveRate(fx map[string]models.FxRate, from, to models.Currency) (models.FxRate, bool) {
	pair := models.CurrencyPair{From: from, To: to}
	if r, ok := fx[pair.Key()]; ok && r.Rate.Sign() > 0 {
		return r, true
	}
	if r, ok := fx[pair.Inverse().Key()]; ok && r.Rate.Sign() > 0 {
		return r.Inverted(), true
	}
	return models.FxRate{}, false
}

// ValueHoldings values each holding into the base currency and aggregates a
// PortfolioSummary. Missing quotes or FX never fail the call; affected
// holdings are skipped with a typed reason and the total degrades to the sum
// of what could be valued. The summary's AsOf is the earliest timestamp among
// all quotes and rates actually used.
func ValueHoldings(base models.Currency, holdings []models.Holding, quotes map[string]models.Quote, fx map[string]models.FxRate) *models.PortfolioSummary {
	summary := &models.PortfolioSummary{
		BaseCurrency: base,
		Holdings:     make([]models.HoldingValuation, 0, len(holdings)),
	}

	total := decimal.Zero
	valued := 0
	var asOf time.Time

	trackAsOf := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if asOf.IsZero() || t.Before(asOf) {
			asOf = t
		}
	}

	for _, h := range holdings {
		hv := models.HoldingValuation{Holding: h}

		switch {
		case h.Kind == models.KindCurrency:
			// Cash: quantity is the native-currency value.
			native := h.Quantity
			if h.Currency == base {
				hv.Value = &native
			} else {
				rate, ok := ResolveRate(fx, h.Currency, base)
				if !ok {
					hv.MissingReason = models.MissingFx
					summary.MissingFx++
					break
				}
				v := native.Mul(rate.Rate)
				hv.Value = &v
				trackAsOf(rate.AsOf)
			}

		default:
			q, ok := quotes[h.InstrumentID]
			if !ok || q.Currency != h.Currency || q.Price.Sign() <= 0 {
				// Absent quote or currency mismatch both count as unvalued.
				hv.MissingReason = models.MissingQuote
				summary.MissingQuotes++
				break
			}

			native := h.Quantity.Mul(q.Price)
			fxRate := decimal.NewFromInt(1)
			if h.Currency != base {
				rate, ok := ResolveRate(fx, h.Currency, base)
				if !ok {
					hv.MissingReason = models.MissingFx
					summary.MissingFx++
					break
				}
				fxRate = rate.Rate
				trackAsOf(rate.AsOf)
			}
			v := native.Mul(fxRate)
			hv.Value = &v
			trackAsOf(q.AsOf)

			if q.DayChange != nil {
				dc := h.Quantity.Mul(*q.DayChange).Mul(fxRate)
				hv.DayChange = &dc
			}
			// Day-change percent is currency-invariant; pass it through.
			hv.DayChangePct = q.DayChangePct
		}

		if hv.Value != nil {
			total = total.Add(*hv.Value)
			valued++
		}
		summary.Holdings = append(summary.Holdings, hv)
	}

	if valued > 0 {
		summary.TotalValue = &total
	}
	summary.IsPartial = summary.MissingQuotes > 0 || summary.MissingFx > 0
	summary.AsOf = asOf

	// Weights need the final total; a zero total leaves them unset.
	if summary.TotalValue != nil && total.Sign() != 0 {
		for i := range summary.Holdings {
			if summary.Holdings[i].Value != nil {
				w := summary.Holdings[i].Value.Div(total)
				summary.Holdings[i].Weight = &w
			}
		}
	}

	return summary
}
