package interfaces

import (
	"context"

	"github.com/mstolarski/folio/internal/models"
)

// MarketProvider fetches normalized market data rows from an external source.
// Implementations must tolerate partial or invalid entries without failing
// the whole batch, and bound every call with the configured timeout.
type MarketProvider interface {
	// Name identifies the provider; persisted rows carry it as their key
	// component.
	Name() string

	// FetchQuotes returns live quotes for the given symbols. Symbols the
	// provider cannot resolve are simply absent from the result.
	FetchQuotes(ctx context.Context, symbols []string) ([]models.Quote, error)

	// FetchFxRates returns live rates for the given pairs. Unresolvable
	// pairs are absent from the result.
	FetchFxRates(ctx context.Context, pairs []models.CurrencyPair) ([]models.FxRate, error)

	// FetchDailyPrices returns the daily close series for a symbol over
	// [from, to], ordered by date ascending.
	FetchDailyPrices(ctx context.Context, symbol string, from, to models.Day) ([]models.DailyPrice, error)

	// FetchDailyFxRates returns the daily rate series for a pair over
	// [from, to], ordered by date ascending.
	FetchDailyFxRates(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error)
}
