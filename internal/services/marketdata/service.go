package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
)

var one = decimal.NewFromInt(1)

// Compile-time interface check
var _ interfaces.MarketDataService = (*Service)(nil)

// Service implements MarketDataService over a MarketStore cache and a
// MarketProvider fetcher.
type Service struct {
	store    interfaces.MarketStore
	provider interfaces.MarketProvider
	logger   *common.Logger
	now      func() time.Time
}

// NewService creates a new market data service.
func NewService(store interfaces.MarketStore, provider interfaces.MarketProvider, logger *common.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// GetQuotes returns live quotes for the priceable holdings (currency and
// custom instruments are excluded). Cached rows within the quote TTL are
// served as-is; the rest are fetched in one provider batch and persisted. A
// provider failure degrades to whatever the cache had; entries that did
// succeed are never failed by ones that did not.
func (s *Service) GetQuotes(ctx context.Context, holdings []models.Holding) (map[string]models.Quote, error) {
	ids := make([]string, 0, len(holdings))
	symbolByID := make(map[string]string)
	idBySymbol := make(map[string]string)
	for _, h := range holdings {
		if h.Kind != models.KindSecurity {
			continue
		}
		ids = append(ids, h.InstrumentID)
		symbolByID[h.InstrumentID] = h.Symbol
		idBySymbol[h.Symbol] = h.InstrumentID
	}
	if len(ids) == 0 {
		return map[string]models.Quote{}, nil
	}

	cached, err := s.store.GetQuotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote cache: %w", err)
	}

	result := make(map[string]models.Quote, len(ids))
	var staleSymbols []string
	for _, id := range ids {
		var hit *models.Quote
		for i := range cached {
			if cached[i].InstrumentID == id {
				hit = &cached[i]
				break
			}
		}
		if hit != nil && common.IsFresh(hit.FetchedAt, common.FreshnessQuote) {
			result[id] = *hit
			continue
		}
		if hit != nil {
			result[id] = *hit // stale fallback, replaced below on fetch success
		}
		staleSymbols = append(staleSymbols, symbolByID[id])
	}

	if len(staleSymbols) == 0 {
		return result, nil
	}

	fetched, err := s.provider.FetchQuotes(ctx, staleSymbols)
	if err != nil {
		s.logger.Warn().Err(err).Int("symbols", len(staleSymbols)).
			Msg("Quote fetch failed, serving cached entries")
		return result, nil
	}

	now := s.now()
	toSave := make([]models.Quote, 0, len(fetched))
	for _, q := range fetched {
		id, ok := idBySymbol[q.Symbol]
		if !ok || q.Price.Sign() <= 0 {
			continue
		}
		q.InstrumentID = id
		q.FetchedAt = now
		q.Provider = s.provider.Name()
		result[id] = q
		toSave = append(toSave, q)
	}
	if len(toSave) > 0 {
		if err := s.store.SaveQuotes(ctx, toSave); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist fetched quotes")
		}
	}

	return result, nil
}

// GetFxRates returns live rates keyed by pair key. Each pair resolves
// direct-first from the cache, then via the cached inverse, then from the
// provider.
func (s *Service) GetFxRates(ctx context.Context, pairs []models.CurrencyPair) (map[string]models.FxRate, error) {
	if len(pairs) == 0 {
		return map[string]models.FxRate{}, nil
	}

	// Request both directions so an inverted cache hit can serve.
	lookup := make([]models.CurrencyPair, 0, len(pairs)*2)
	for _, p := range pairs {
		lookup = append(lookup, p, p.Inverse())
	}

	cached, err := s.store.GetFxRates(ctx, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to read FX cache: %w", err)
	}
	byKey := make(map[string]models.FxRate, len(cached))
	for _, r := range cached {
		byKey[r.Pair().Key()] = r
	}

	result := make(map[string]models.FxRate, len(pairs))
	var missing []models.CurrencyPair
	for _, p := range pairs {
		if r, ok := byKey[p.Key()]; ok && r.Rate.Sign() > 0 && common.IsFresh(r.FetchedAt, common.FreshnessFxRate) {
			result[p.Key()] = r
			continue
		}
		if r, ok := byKey[p.Inverse().Key()]; ok && r.Rate.Sign() > 0 && common.IsFresh(r.FetchedAt, common.FreshnessFxRate) {
			result[p.Key()] = r.Inverted()
			continue
		}
		missing = append(missing, p)
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := s.provider.FetchFxRates(ctx, missing)
	if err != nil {
		s.logger.Warn().Err(err).Int("pairs", len(missing)).
			Msg("FX fetch failed, serving cached entries")
		// Stale cached rows still beat nothing.
		for _, p := range missing {
			if r, ok := byKey[p.Key()]; ok && r.Rate.Sign() > 0 {
				result[p.Key()] = r
			} else if r, ok := byKey[p.Inverse().Key()]; ok && r.Rate.Sign() > 0 {
				result[p.Key()] = r.Inverted()
			}
		}
		return result, nil
	}

	now := s.now()
	toSave := make([]models.FxRate, 0, len(fetched))
	for _, r := range fetched {
		if r.Rate.Sign() <= 0 {
			continue
		}
		r.FetchedAt = now
		r.Source = models.RateSourceDirect
		r.Provider = s.provider.Name()
		result[r.Pair().Key()] = r
		toSave = append(toSave, r)
	}
	if len(toSave) > 0 {
		if err := s.store.SaveFxRates(ctx, toSave); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to persist fetched FX rates")
		}
	}

	return result, nil
}

// DailyPriceSeries returns the instrument's daily close series over
// [from, to]. When the cached series does not cover the range within the gap
// tolerance, the full range is fetched from the provider (not just the
// missing days), persisted, and re-read.
func (s *Service) DailyPriceSeries(ctx context.Context, instrumentID, symbol string, from, to models.Day) ([]models.DailyPrice, error) {
	series, err := s.store.GetDailyPrices(ctx, instrumentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily price cache: %w", err)
	}
	if SeriesCovers(series, from, to) {
		return series, nil
	}

	fetched, err := s.provider.FetchDailyPrices(ctx, symbol, from, to)
	if err != nil {
		if len(series) > 0 {
			s.logger.Warn().Err(err).Str("symbol", symbol).
				Msg("Daily price fetch failed, serving partial cached series")
			return series, nil
		}
		return nil, fmt.Errorf("failed to fetch daily prices for %s: %w", symbol, err)
	}

	toSave := make([]models.DailyPrice, 0, len(fetched))
	for _, p := range fetched {
		if p.Price.Sign() <= 0 || p.Date.IsZero() {
			continue // tolerate partial/invalid provider entries
		}
		p.InstrumentID = instrumentID
		p.Provider = s.provider.Name()
		toSave = append(toSave, p)
	}
	if len(toSave) > 0 {
		if err := s.store.SaveDailyPrices(ctx, toSave); err != nil {
			return nil, fmt.Errorf("failed to persist daily prices: %w", err)
		}
	}

	return s.store.GetDailyPrices(ctx, instrumentID, from, to)
}

// DailyFxSeries returns the pair's daily rate series over [from, to] with
// the same cover-or-fetch behavior as DailyPriceSeries. Only direct rows are
// stored; inversion happens at lookup time.
func (s *Service) DailyFxSeries(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error) {
	series, err := s.store.GetDailyFxRates(ctx, pair, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily FX cache: %w", err)
	}
	if FxSeriesCovers(series, from, to) {
		return series, nil
	}

	fetched, err := s.provider.FetchDailyFxRates(ctx, pair, from, to)
	if err != nil {
		if len(series) > 0 {
			s.logger.Warn().Err(err).Str("pair", pair.String()).
				Msg("Daily FX fetch failed, serving partial cached series")
			return series, nil
		}
		return nil, fmt.Errorf("failed to fetch daily FX for %s: %w", pair, err)
	}

	toSave := make([]models.DailyFxRate, 0, len(fetched))
	for _, r := range fetched {
		if r.Rate.Sign() <= 0 || r.Date.IsZero() {
			continue
		}
		r.From, r.To = pair.From, pair.To
		r.Source = models.RateSourceDirect
		r.Provider = s.provider.Name()
		toSave = append(toSave, r)
	}
	if len(toSave) > 0 {
		if err := s.store.SaveDailyFxRates(ctx, toSave); err != nil {
			return nil, fmt.Errorf("failed to persist daily FX rates: %w", err)
		}
	}

	return s.store.GetDailyFxRates(ctx, pair, from, to)
}
