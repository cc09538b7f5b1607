// Package rebuild owns the dirty-range snapshot rebuild: the per-series
// state machine coordinating concurrent invocations, and the session that
// turns ledger replay plus market data into persisted daily rows.
package rebuild

import (
	"github.com/shopspring/decimal"

	"github.com/mstolarski/folio/internal/models"
	"github.com/mstolarski/folio/internal/services/ledger"
	"github.com/mstolarski/folio/internal/services/marketdata"
	"github.com/mstolarski/folio/internal/services/valuation"
)

// Session walks a replay result and a preloaded market data cursor over a
// date range, producing one snapshot row per day. Days are processed in
// strictly ascending order; the cursor's monotonic advance and the replay's
// running holding state both depend on it.
type Session struct {
	userID      string
	scope       models.Scope
	portfolioID string

	holdings map[string]models.Holding
	anchors  map[string]models.CustomInstrumentAnchor
	days     []ledger.DayEntry
	groups   map[string]bool
	cursor   *marketdata.RangeCursor

	pos int
}

// NewSession builds a session from a ledger replay covering the full range
// and a cursor preloaded with every series the range needs.
func NewSession(userID string, scope models.Scope, portfolioID string, replay *ledger.Result, cursor *marketdata.RangeCursor) *Session {
	return &Session{
		userID:      userID,
		scope:       scope,
		portfolioID: portfolioID,
		holdings:    replay.Opening,
		anchors:     replay.Anchors,
		days:        replay.Days,
		groups:      replay.GroupsWithCashLeg,
		cursor:      cursor,
	}
}

// NextDate returns the next unprocessed day, or false when the range is
// exhausted.
func (s *Session) NextDate() (models.Day, bool) {
	if s.pos >= len(s.days) {
		return "", false
	}
	return s.days[s.pos].Date, true
}

// ProcessNextChunk processes up to maxDays consecutive calendar days and
// returns the rows they produced plus the chunk's date span. Days with no
// holdings or no valued currency yield no row but still consume a day of the
// chunk. The span is what the caller must replace in storage, row or no row.
func (s *Session) ProcessNextChunk(maxDays int) (rows []models.SnapshotRow, from, to models.Day, more bool) {
	if s.pos >= len(s.days) {
		return nil, "", "", false
	}
	if maxDays < 1 {
		maxDays = 1
	}

	end := s.pos + maxDays
	if end > len(s.days) {
		end = len(s.days)
	}
	from = s.days[s.pos].Date
	to = s.days[end-1].Date

	for ; s.pos < end; s.pos++ {
		entry := s.days[s.pos]
		s.cursor.AdvanceTo(entry.Date)

		for _, t := range entry.Transactions {
			ledger.ApplyTransaction(s.holdings, s.anchors, t)
		}

		if row, ok := s.buildRow(entry); ok {
			rows = append(rows, row)
		}
	}

	return rows, from, to, s.pos < len(s.days)
}

// buildRow values the end-of-day holding state in every supported currency
// and converts the day's flows. Returns false for days that produce no row.
func (s *Session) buildRow(entry ledger.DayEntry) (models.SnapshotRow, bool) {
	if len(s.holdings) == 0 {
		return models.SnapshotRow{}, false
	}

	holdings := make([]models.Holding, 0, len(s.holdings))
	for _, h := range s.holdings {
		holdings = append(holdings, h)
	}

	quotes := s.quotesAsOf(entry.Date, holdings)
	external, implicit := ledger.DayFlows(entry.Transactions, s.groups)

	row := models.SnapshotRow{
		UserID:      s.userID,
		Scope:       s.scope,
		PortfolioID: s.portfolioID,
		BucketDate:  entry.Date,
		Cells:       make(map[models.Currency]models.SnapshotCell, len(models.SupportedCurrencies)),
	}

	valued := 0
	for _, base := range models.SupportedCurrencies {
		fx := s.fxAsOf(holdings, external, implicit, base)
		summary := valuation.ValueHoldings(base, holdings, quotes, fx)

		cell := models.SnapshotCell{
			Value:         summary.TotalValue,
			IsPartial:     summary.IsPartial,
			MissingQuotes: summary.MissingQuotes,
			MissingFx:     summary.MissingFx,
			AsOf:          summary.AsOf,
		}
		cell.ExternalCashflow = s.convertFlows(external, base, fx, &cell)
		cell.ImplicitTransfer = s.convertFlows(implicit, base, fx, &cell)

		if cell.Value != nil {
			valued++
		}
		row.Cells[base] = cell
	}

	if valued == 0 {
		return models.SnapshotRow{}, false
	}
	return row, true
}

// quotesAsOf resolves a quote per holding from the cursor, synthesizing
// quotes for custom instruments from their anchor model. Cash needs none.
func (s *Session) quotesAsOf(day models.Day, holdings []models.Holding) map[string]models.Quote {
	quotes := make(map[string]models.Quote, len(holdings))
	for _, h := range holdings {
		switch h.Kind {
		case models.KindSecurity:
			p, ok := s.cursor.Price(h.InstrumentID)
			if !ok {
				continue
			}
			quotes[h.InstrumentID] = models.Quote{
				InstrumentID: h.InstrumentID,
				Symbol:       p.Symbol,
				Currency:     p.Currency,
				Price:        p.Price,
				AsOf:         p.Date.Time(),
				Provider:     p.Provider,
			}

		case models.KindCustom:
			a, ok := s.anchors[h.InstrumentID]
			if !ok {
				continue
			}
			price, ok := a.PriceOn(day)
			if !ok {
				continue
			}
			quotes[h.InstrumentID] = models.Quote{
				InstrumentID: h.InstrumentID,
				Currency:     h.Currency,
				Price:        price,
				AsOf:         day.Time(),
			}
		}
	}
	return quotes
}

// fxAsOf collects every rate the day's valuation and flow conversion into
// base can need, keyed by pair key. The cursor already handles inversion, so
// each resolved rate is stored under its actual direction.
func (s *Session) fxAsOf(holdings []models.Holding, external, implicit map[models.Currency]decimal.Decimal, base models.Currency) map[string]models.FxRate {
	needed := make(map[models.Currency]bool)
	for _, h := range holdings {
		needed[h.Currency] = true
	}
	for c := range external {
		needed[c] = true
	}
	for c := range implicit {
		needed[c] = true
	}

	fx := make(map[string]models.FxRate)
	for from := range needed {
		if from == base {
			continue
		}
		r, ok := s.cursor.FxRate(from, base)
		if !ok {
			continue
		}
		rate := models.FxRate{
			From:     r.From,
			To:       r.To,
			Rate:     r.Rate,
			AsOf:     r.Date.Time(),
			Source:   r.Source,
			Provider: r.Provider,
		}
		fx[rate.Pair().Key()] = rate
	}
	return fx
}

// convertFlows sums per-native-currency flow amounts into the base currency.
// A nonzero amount with no resolvable rate makes the whole total nil and
// marks the cell partial; zero amounts convert trivially.
func (s *Session) convertFlows(flows map[models.Currency]decimal.Decimal, base models.Currency, fx map[string]models.FxRate, cell *models.SnapshotCell) *decimal.Decimal {
	total := decimal.Zero
	for from, amount := range flows {
		if amount.IsZero() {
			continue
		}
		if from == base {
			total = total.Add(amount)
			continue
		}
		rate, ok := valuation.ResolveRate(fx, from, base)
		if !ok {
			cell.IsPartial = true
			cell.MissingFx++
			return nil
		}
		total = total.Add(amount.Mul(rate.Rate))
	}
	return &total
}
