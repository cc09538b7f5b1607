package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstolarski/folio/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func buyTx(seq int64, date models.Day, instrument string, qty, price string) models.Transaction {
	return models.Transaction{
		ID: instrument + "-" + string(date), InstrumentID: instrument,
		Kind: models.KindSecurity, Currency: models.CurrencyPLN,
		TradeDate: date, Side: models.SideBuy,
		Quantity: dec(qty), Price: dec(price), Seq: seq,
	}
}

func TestReplay_OpeningStateAndDayBuckets(t *testing.T) {
	txs := []models.Transaction{
		buyTx(1, "2024-01-02", "cdp", "10", "100"),
		buyTx(2, "2024-01-05", "cdp", "5", "110"),
		buyTx(3, "2024-01-10", "pko", "100", "40"),
	}

	res := Replay(txs, nil, "2024-01-05", "2024-01-10")

	// Only the 2024-01-02 buy precedes the start date.
	require.Len(t, res.Opening, 1)
	assert.True(t, res.Opening["cdp"].Quantity.Equal(dec("10")))

	// One entry per calendar day, inclusive.
	require.Len(t, res.Days, 6)
	assert.Equal(t, models.Day("2024-01-05"), res.Days[0].Date)
	assert.Equal(t, models.Day("2024-01-10"), res.Days[5].Date)
	assert.Len(t, res.Days[0].Transactions, 1)
	assert.Len(t, res.Days[1].Transactions, 0)
	assert.Len(t, res.Days[5].Transactions, 1)
}

func TestReplay_OrderedByTradeDateThenSeq(t *testing.T) {
	// Same-day entries replay in insertion order: sell before buy here would
	// zero the holding; insertion order keeps it alive.
	txs := []models.Transaction{
		{InstrumentID: "x", Kind: models.KindSecurity, Currency: models.CurrencyPLN,
			TradeDate: "2024-01-02", Side: models.SideSell, Quantity: dec("10"), Price: dec("1"), Seq: 2},
		{InstrumentID: "x", Kind: models.KindSecurity, Currency: models.CurrencyPLN,
			TradeDate: "2024-01-02", Side: models.SideBuy, Quantity: dec("10"), Price: dec("1"), Seq: 1},
	}

	res := Replay(txs, nil, "2024-01-03", "2024-01-03")

	assert.Empty(t, res.Opening, "buy then sell nets to zero and removes the row")
}

func TestApplyTransaction_ZeroQuantityRemoved(t *testing.T) {
	holdings := map[string]models.Holding{}
	anchors := map[string]models.CustomInstrumentAnchor{}

	ApplyTransaction(holdings, anchors, buyTx(1, "2024-01-02", "cdp", "10", "100"))
	require.Contains(t, holdings, "cdp")

	sell := buyTx(2, "2024-01-03", "cdp", "10", "105")
	sell.Side = models.SideSell
	ApplyTransaction(holdings, anchors, sell)

	assert.NotContains(t, holdings, "cdp", "net zero quantity must remove the holding")
}

func TestApplyTransaction_CustomAnchorMoves(t *testing.T) {
	holdings := map[string]models.Holding{}
	anchors := map[string]models.CustomInstrumentAnchor{
		"flat": {InstrumentID: "flat", AnchorDate: "2020-01-01", AnchorPrice: dec("500000"), AnnualRatePct: dec("3")},
	}

	tx := models.Transaction{
		InstrumentID: "flat", Kind: models.KindCustom, Currency: models.CurrencyPLN,
		TradeDate: "2024-06-01", Side: models.SideBuy, LegRole: models.LegAsset,
		Quantity: dec("1"), Price: dec("650000"), Seq: 1,
	}
	ApplyTransaction(holdings, anchors, tx)

	a := anchors["flat"]
	assert.Equal(t, models.Day("2024-06-01"), a.AnchorDate)
	assert.True(t, a.AnchorPrice.Equal(dec("650000")))
	assert.True(t, a.AnnualRatePct.Equal(dec("3")), "annual rate survives the anchor move")
}

func TestDayFlows_ExternalCashflow(t *testing.T) {
	txs := []models.Transaction{
		{InstrumentID: "cash-pln", Kind: models.KindCurrency, Currency: models.CurrencyPLN,
			Side: models.SideBuy, CashflowType: models.CashflowDeposit, Quantity: dec("1000"), Price: dec("1")},
		{InstrumentID: "cash-pln", Kind: models.KindCurrency, Currency: models.CurrencyPLN,
			Side: models.SideSell, CashflowType: models.CashflowWithdrawal, Quantity: dec("300"), Price: dec("1")},
		{InstrumentID: "cash-usd", Kind: models.KindCurrency, Currency: models.CurrencyUSD,
			Side: models.SideBuy, CashflowType: models.CashflowDeposit, Quantity: dec("50"), Price: dec("1")},
	}

	external, implicit := DayFlows(txs, nil)

	assert.True(t, external[models.CurrencyPLN].Equal(dec("700")))
	assert.True(t, external[models.CurrencyUSD].Equal(dec("50")))
	assert.Empty(t, implicit)
}

func TestDayFlows_ImplicitTransfer(t *testing.T) {
	// Asset buy with no paired cash leg: the portfolio gained value without
	// an explicit cash movement: gross + fee counts as an inflow.
	txs := []models.Transaction{
		{InstrumentID: "cdp", Kind: models.KindSecurity, Currency: models.CurrencyPLN,
			Side: models.SideBuy, LegRole: models.LegAsset,
			Quantity: dec("10"), Price: dec("100"), Fee: dec("5")},
	}

	external, implicit := DayFlows(txs, map[string]bool{})

	assert.Empty(t, external)
	assert.True(t, implicit[models.CurrencyPLN].Equal(dec("1005")))
}

func TestDayFlows_GroupedAssetLegNotImplicit(t *testing.T) {
	// A funded purchase: the cash leg carries the true movement, the asset
	// leg must not be double-counted as an implicit transfer.
	txs := []models.Transaction{
		{InstrumentID: "cdp", Kind: models.KindSecurity, Currency: models.CurrencyPLN,
			Side: models.SideBuy, LegRole: models.LegAsset, GroupID: "g1",
			Quantity: dec("10"), Price: dec("100")},
		{InstrumentID: "cash-pln", Kind: models.KindCurrency, Currency: models.CurrencyPLN,
			Side: models.SideSell, LegRole: models.LegCash, GroupID: "g1",
			Quantity: dec("1000"), Price: dec("1")},
	}

	external, implicit := DayFlows(txs, map[string]bool{"g1": true})

	assert.Empty(t, implicit)
	assert.Empty(t, external, "a grouped cash leg without deposit/withdrawal tag is an internal move")
}

func TestDayFlows_SellImplicitOutflow(t *testing.T) {
	txs := []models.Transaction{
		{InstrumentID: "cdp", Kind: models.KindSecurity, Currency: models.CurrencyPLN,
			Side: models.SideSell, LegRole: models.LegAsset,
			Quantity: dec("10"), Price: dec("100"), Fee: dec("5")},
	}

	_, implicit := DayFlows(txs, nil)

	assert.True(t, implicit[models.CurrencyPLN].Equal(dec("-995")), "sell: −(gross − fee)")
}
