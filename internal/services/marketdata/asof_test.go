package marketdata

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

func priceRow(date models.Day, price string) models.DailyPrice {
	return models.DailyPrice{InstrumentID: "x", Date: date, Price: dec(price), Currency: models.CurrencyPLN}
}

func TestPriceAsOf_NeverReturnsFutureRow(t *testing.T) {
	series := []models.DailyPrice{
		priceRow("2024-01-02", "10"),
		priceRow("2024-01-05", "11"),
		priceRow("2024-01-09", "12"),
	}

	for _, tc := range []struct {
		date  models.Day
		want  string
		found bool
	}{
		{"2024-01-01", "", false},
		{"2024-01-02", "10", true},
		{"2024-01-04", "10", true},
		{"2024-01-05", "11", true},
		{"2024-01-08", "11", true},
		{"2024-01-20", "12", true},
	} {
		p, ok := PriceAsOf(series, tc.date)
		require.Equal(t, tc.found, ok, "date %s", tc.date)
		if !ok {
			continue
		}
		assert.True(t, p.Price.Equal(dec(tc.want)), "date %s: got %s want %s", tc.date, p.Price, tc.want)
		assert.False(t, p.Date.After(tc.date), "as-of must never resolve past the requested date")
	}
}

func TestPriceAsOf_FilledFromPreviousSession(t *testing.T) {
	series := []models.DailyPrice{priceRow("2024-01-05", "11")}

	exact, ok := PriceAsOf(series, "2024-01-05")
	require.True(t, ok)
	assert.False(t, exact.FilledFromPreviousSession)

	filled, ok := PriceAsOf(series, "2024-01-07")
	require.True(t, ok)
	assert.True(t, filled.FilledFromPreviousSession)
}

func TestFxAsOf(t *testing.T) {
	series := []models.DailyFxRate{
		{From: models.CurrencyUSD, To: models.CurrencyPLN, Date: "2024-01-02", Rate: dec("4.0")},
		{From: models.CurrencyUSD, To: models.CurrencyPLN, Date: "2024-01-03", Rate: dec("4.1")},
	}

	r, ok := FxAsOf(series, "2024-01-04")
	require.True(t, ok)
	assert.True(t, r.Rate.Equal(dec("4.1")))
	assert.True(t, r.FilledFromPreviousSession)

	_, ok = FxAsOf(series, "2024-01-01")
	assert.False(t, ok)
}

func TestSeriesCovers(t *testing.T) {
	daily := func(days ...models.Day) []models.DailyPrice {
		var out []models.DailyPrice
		for _, d := range days {
			out = append(out, priceRow(d, "1"))
		}
		return out
	}

	// Weekday series with weekend gaps covers the range.
	assert.True(t, SeriesCovers(daily("2024-01-02", "2024-01-05", "2024-01-08", "2024-01-12"), "2024-01-01", "2024-01-14"))

	// First point too far after from.
	assert.False(t, SeriesCovers(daily("2024-01-20", "2024-01-22"), "2024-01-01", "2024-01-25"))

	// Last point too far before to.
	assert.False(t, SeriesCovers(daily("2024-01-02", "2024-01-05"), "2024-01-01", "2024-02-01"))

	// Internal hole larger than the tolerance.
	assert.False(t, SeriesCovers(daily("2024-01-02", "2024-01-25"), "2024-01-01", "2024-01-28"))

	// Empty series never covers.
	assert.False(t, SeriesCovers(nil, "2024-01-01", "2024-01-02"))
}
