package rebuild

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstolarski/folio/internal/models"
	"github.com/mstolarski/folio/internal/services/ledger"
	"github.com/mstolarski/folio/internal/services/marketdata"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Ledger fixture: a PLN deposit on day one, then a funded security purchase
// on day two (asset leg plus cash leg in one group).
func fixtureTransactions() []models.Transaction {
	return []models.Transaction{
		{
			ID: "t1", UserID: "u1", InstrumentID: "cash-pln", Kind: models.KindCurrency,
			Currency: models.CurrencyPLN, TradeDate: "2024-01-01", Side: models.SideBuy,
			Quantity: dec("1000"), Price: dec("1"), CashflowType: models.CashflowDeposit, Seq: 1,
		},
		{
			ID: "t2", UserID: "u1", InstrumentID: "cdp", Kind: models.KindSecurity,
			Symbol: "CDR.WAR", Currency: models.CurrencyPLN, TradeDate: "2024-01-02",
			Side: models.SideBuy, Quantity: dec("10"), Price: dec("100"),
			GroupID: "g1", LegRole: models.LegAsset, Seq: 2,
		},
		{
			ID: "t3", UserID: "u1", InstrumentID: "cash-pln", Kind: models.KindCurrency,
			Currency: models.CurrencyPLN, TradeDate: "2024-01-02", Side: models.SideSell,
			Quantity: dec("1000"), Price: dec("1"), GroupID: "g1", LegRole: models.LegCash, Seq: 3,
		},
	}
}

func fixtureCursor() *marketdata.RangeCursor {
	prices := map[string][]models.DailyPrice{
		"cdp": {
			{InstrumentID: "cdp", Date: "2024-01-02", Price: dec("100"), Currency: models.CurrencyPLN},
			{InstrumentID: "cdp", Date: "2024-01-03", Price: dec("110"), Currency: models.CurrencyPLN},
		},
	}
	fx := map[models.CurrencyPair][]models.DailyFxRate{
		{From: models.CurrencyUSD, To: models.CurrencyPLN}: {
			{From: models.CurrencyUSD, To: models.CurrencyPLN, Date: "2024-01-01", Rate: dec("4")},
		},
	}
	return marketdata.NewRangeCursor(prices, fx)
}

func fixtureSession(from, to models.Day) *Session {
	replay := ledger.Replay(fixtureTransactions(), nil, from, to)
	return NewSession("u1", models.ScopeAll, "", replay, fixtureCursor())
}

func cellValue(t *testing.T, row models.SnapshotRow, c models.Currency) decimal.Decimal {
	t.Helper()
	cell, ok := row.Cells[c]
	require.True(t, ok)
	require.NotNil(t, cell.Value)
	return *cell.Value
}

func TestSession_BuildsRowPerDay(t *testing.T) {
	session := fixtureSession("2024-01-01", "2024-01-03")

	rows, from, to, more := session.ProcessNextChunk(10)

	assert.Equal(t, models.Day("2024-01-01"), from)
	assert.Equal(t, models.Day("2024-01-03"), to)
	assert.False(t, more)
	require.Len(t, rows, 3)

	// Day 1: 1000 PLN cash, valued end of day.
	assert.True(t, cellValue(t, rows[0], models.CurrencyPLN).Equal(dec("1000")))
	// USD cell converts through the inverted USD/PLN rate.
	assert.True(t, cellValue(t, rows[0], models.CurrencyUSD).Equal(dec("250")))

	// Day 2: cash fully spent on 10 shares at 100.
	assert.True(t, cellValue(t, rows[1], models.CurrencyPLN).Equal(dec("1000")))
	// Day 3: price moved to 110.
	assert.True(t, cellValue(t, rows[2], models.CurrencyPLN).Equal(dec("1100")))
}

func TestSession_ExternalCashflowRecordedAndConverted(t *testing.T) {
	session := fixtureSession("2024-01-01", "2024-01-02")

	rows, _, _, _ := session.ProcessNextChunk(10)
	require.Len(t, rows, 2)

	day1PLN := rows[0].Cells[models.CurrencyPLN]
	require.NotNil(t, day1PLN.ExternalCashflow)
	assert.True(t, day1PLN.ExternalCashflow.Equal(dec("1000")))
	require.NotNil(t, day1PLN.ImplicitTransfer)
	assert.True(t, day1PLN.ImplicitTransfer.IsZero())

	day1USD := rows[0].Cells[models.CurrencyUSD]
	require.NotNil(t, day1USD.ExternalCashflow)
	assert.True(t, day1USD.ExternalCashflow.Equal(dec("250")))

	// No deposit on day 2; flows are zero, not nil.
	day2PLN := rows[1].Cells[models.CurrencyPLN]
	require.NotNil(t, day2PLN.ExternalCashflow)
	assert.True(t, day2PLN.ExternalCashflow.IsZero())
}

func TestSession_MissingFxMakesFlowNilAndCellPartial(t *testing.T) {
	session := fixtureSession("2024-01-01", "2024-01-01")

	rows, _, _, _ := session.ProcessNextChunk(10)
	require.Len(t, rows, 1)

	// No EUR rate anywhere: the EUR cell cannot value cash or convert the
	// deposit.
	eur := rows[0].Cells[models.CurrencyEUR]
	assert.Nil(t, eur.Value)
	assert.Nil(t, eur.ExternalCashflow)
	assert.True(t, eur.IsPartial)
	assert.Greater(t, eur.MissingFx, 0)
}

func TestSession_GroupedPurchaseIsNotImplicitTransfer(t *testing.T) {
	session := fixtureSession("2024-01-02", "2024-01-02")

	rows, _, _, _ := session.ProcessNextChunk(10)
	require.Len(t, rows, 1)

	pln := rows[0].Cells[models.CurrencyPLN]
	require.NotNil(t, pln.ImplicitTransfer)
	assert.True(t, pln.ImplicitTransfer.IsZero(), "the cash leg already represents the movement")
}

func TestSession_UngroupedAssetLegIsImplicitTransfer(t *testing.T) {
	txs := []models.Transaction{{
		ID: "t1", UserID: "u1", InstrumentID: "cdp", Kind: models.KindSecurity,
		Symbol: "CDR.WAR", Currency: models.CurrencyPLN, TradeDate: "2024-01-02",
		Side: models.SideBuy, Quantity: dec("10"), Price: dec("100"), Fee: dec("5"),
		LegRole: models.LegAsset, Seq: 1,
	}}
	replay := ledger.Replay(txs, nil, "2024-01-02", "2024-01-02")
	session := NewSession("u1", models.ScopeAll, "", replay, fixtureCursor())

	rows, _, _, _ := session.ProcessNextChunk(10)
	require.Len(t, rows, 1)

	pln := rows[0].Cells[models.CurrencyPLN]
	require.NotNil(t, pln.ImplicitTransfer)
	assert.True(t, pln.ImplicitTransfer.Equal(dec("1005")), "gross plus fee entered the portfolio")
}

func TestSession_ZeroHoldingsDayYieldsNoRow(t *testing.T) {
	// Range starts before any transaction exists.
	session := fixtureSession("2023-12-30", "2024-01-01")

	rows, from, to, _ := session.ProcessNextChunk(10)

	assert.Equal(t, models.Day("2023-12-30"), from)
	assert.Equal(t, models.Day("2024-01-01"), to, "empty days still consume the span")
	require.Len(t, rows, 1)
	assert.Equal(t, models.Day("2024-01-01"), rows[0].BucketDate)
}

func TestSession_CustomInstrumentPricedFromAnchor(t *testing.T) {
	txs := []models.Transaction{{
		ID: "t1", UserID: "u1", InstrumentID: "flat", Kind: models.KindCustom,
		Currency: models.CurrencyPLN, TradeDate: "2024-01-01", Side: models.SideBuy,
		Quantity: dec("1"), Price: dec("500000"), LegRole: models.LegAsset, Seq: 1,
	}}
	anchors := []models.CustomInstrumentAnchor{{
		UserID: "u1", InstrumentID: "flat", AnnualRatePct: dec("5"),
	}}
	replay := ledger.Replay(txs, anchors, "2024-01-01", "2024-01-01")
	session := NewSession("u1", models.ScopeAll, "", replay, fixtureCursor())

	rows, _, _, _ := session.ProcessNextChunk(10)
	require.Len(t, rows, 1)

	// Valued at the anchor on the anchor day itself.
	assert.True(t, cellValue(t, rows[0], models.CurrencyPLN).Equal(dec("500000")))
}

func TestSession_ChunksConsumeExactSpans(t *testing.T) {
	session := fixtureSession("2024-01-01", "2024-04-09") // 100 days

	_, from, to, more := session.ProcessNextChunk(45)
	assert.Equal(t, models.Day("2024-01-01"), from)
	assert.Equal(t, models.Day("2024-02-14"), to)
	assert.True(t, more)

	_, from, to, more = session.ProcessNextChunk(45)
	assert.Equal(t, models.Day("2024-02-15"), from)
	assert.Equal(t, models.Day("2024-03-30"), to)
	assert.True(t, more)

	_, from, to, more = session.ProcessNextChunk(45)
	assert.Equal(t, models.Day("2024-03-31"), from)
	assert.Equal(t, models.Day("2024-04-09"), to, "final chunk stops at the range end")
	assert.False(t, more)

	_, from, _, more = session.ProcessNextChunk(45)
	assert.True(t, from.IsZero(), "an exhausted session returns no span")
	assert.False(t, more)
}
