// Package ledger replays the transaction ledger into per-day holding state
// and classified cash flows.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mstolarski/folio/internal/models"
)

// DayEntry groups all transactions that trade on one calendar day, in
// insertion order.
type DayEntry struct {
	Date         models.Day
	Transactions []models.Transaction
}

// Result is the output of a ledger replay: the holding state at the replay
// start date plus the per-day transaction lists for every day of the range.
type Result struct {
	// Opening holds quantities at the start date, before the start date's
	// own transactions are applied.
	Opening map[string]models.Holding

	// Anchors is custom-instrument anchor state at the start date.
	Anchors map[string]models.CustomInstrumentAnchor

	// Days covers every calendar day from start to end inclusive, in order.
	// Days with no transactions have an empty list.
	Days []DayEntry

	// GroupsWithCashLeg marks transaction groups that contain an explicit
	// cash leg; their asset legs are not implicit transfers.
	GroupsWithCashLeg map[string]bool
}

// Replay applies all transactions dated before start to build the opening
// holding state, then buckets the rest per day through end. Transactions are
// processed in (trade date, insertion order); seedAnchors provides the annual
// rates for custom instruments and is not mutated.
func Replay(txs []models.Transaction, seedAnchors []models.CustomInstrumentAnchor, start, end models.Day) *Result {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TradeDate != sorted[j].TradeDate {
			return sorted[i].TradeDate.Before(sorted[j].TradeDate)
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	res := &Result{
		Opening:           make(map[string]models.Holding),
		Anchors:           make(map[string]models.CustomInstrumentAnchor),
		GroupsWithCashLeg: make(map[string]bool),
	}
	for _, a := range seedAnchors {
		res.Anchors[a.InstrumentID] = a
	}
	for _, t := range sorted {
		if t.GroupID != "" && t.LegRole == models.LegCash {
			res.GroupsWithCashLeg[t.GroupID] = true
		}
	}

	byDay := make(map[models.Day][]models.Transaction)
	for _, t := range sorted {
		if t.TradeDate.Before(start) {
			ApplyTransaction(res.Opening, res.Anchors, t)
			continue
		}
		if t.TradeDate.After(end) {
			continue
		}
		byDay[t.TradeDate] = append(byDay[t.TradeDate], t)
	}

	for d := start; !d.After(end); d = d.Add(1) {
		res.Days = append(res.Days, DayEntry{Date: d, Transactions: byDay[d]})
	}

	return res
}

// ApplyTransaction updates running holding quantities and anchors with one
// ledger entry. Buy adds quantity, sell subtracts; a holding whose net
// quantity reaches exactly zero is removed. An asset-leg entry for a custom
// instrument moves that instrument's anchor to the entry's date and price.
func ApplyTransaction(holdings map[string]models.Holding, anchors map[string]models.CustomInstrumentAnchor, t models.Transaction) {
	h, ok := holdings[t.InstrumentID]
	if !ok {
		h = models.Holding{
			InstrumentID: t.InstrumentID,
			Kind:         t.Kind,
			Symbol:       t.Symbol,
			Name:         t.Name,
			Currency:     t.Currency,
			Quantity:     decimal.Zero,
		}
	}

	switch t.Side {
	case models.SideBuy:
		h.Quantity = h.Quantity.Add(t.Quantity)
	case models.SideSell:
		h.Quantity = h.Quantity.Sub(t.Quantity)
	}

	if h.Quantity.IsZero() {
		delete(holdings, t.InstrumentID)
	} else {
		holdings[t.InstrumentID] = h
	}

	if t.Kind == models.KindCustom && t.LegRole == models.LegAsset {
		a := anchors[t.InstrumentID]
		a.InstrumentID = t.InstrumentID
		a.UserID = t.UserID
		a.AnchorDate = t.TradeDate
		a.AnchorPrice = t.Price
		anchors[t.InstrumentID] = a
	}
}

// DayFlows classifies one day's transactions into external cash flows and
// implicit transfers, accumulated per native currency.
//
// External cashflow: a currency entry tagged deposit (+gross) or withdrawal
// (−gross). Implicit transfer: a non-currency asset leg whose group has no
// cash leg, value that entered or left the portfolio without an explicit
// cash transaction; buys contribute +(gross+fee), sells −(gross−fee).
func DayFlows(txs []models.Transaction, groupsWithCashLeg map[string]bool) (external, implicit map[models.Currency]decimal.Decimal) {
	external = make(map[models.Currency]decimal.Decimal)
	implicit = make(map[models.Currency]decimal.Decimal)

	for _, t := range txs {
		switch {
		case t.IsCurrency():
			switch t.CashflowType {
			case models.CashflowDeposit:
				external[t.Currency] = external[t.Currency].Add(t.Gross())
			case models.CashflowWithdrawal:
				external[t.Currency] = external[t.Currency].Sub(t.Gross())
			}

		case t.LegRole == models.LegAsset:
			if t.GroupID != "" && groupsWithCashLeg[t.GroupID] {
				// The cash leg already represents the true cash movement.
				continue
			}
			switch t.Side {
			case models.SideBuy:
				implicit[t.Currency] = implicit[t.Currency].Add(t.Gross().Add(t.Fee))
			case models.SideSell:
				implicit[t.Currency] = implicit[t.Currency].Sub(t.Gross().Sub(t.Fee))
			}
		}
	}

	return external, implicit
}
