package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
)

// MarketStore persists the market data cache: live quotes and FX keyed by
// instrument/pair, daily series keyed by (instrument/pair, date).
type MarketStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.MarketStore = (*MarketStore)(nil)

func NewMarketStore(db *surrealdb.DB, logger *common.Logger) *MarketStore {
	return &MarketStore{db: db, logger: logger}
}

func (s *MarketStore) GetQuotes(ctx context.Context, instrumentIDs []string) ([]models.Quote, error) {
	if len(instrumentIDs) == 0 {
		return nil, nil
	}

	sql := "SELECT * FROM quote WHERE instrument_id IN $ids"
	vars := map[string]any{"ids": instrumentIDs}

	results, err := surrealdb.Query[[]models.Quote](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get quotes: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

func (s *MarketStore) SaveQuotes(ctx context.Context, quotes []models.Quote) error {
	for _, q := range quotes {
		sql := "UPSERT $rid CONTENT $data"
		vars := map[string]any{
			"rid":  surrealmodels.NewRecordID("quote", q.InstrumentID),
			"data": q,
		}

		var lastErr error
		saved := false
		for attempt := 1; attempt <= 3; attempt++ {
			_, err := surrealdb.Query[[]models.Quote](ctx, s.db, sql, vars)
			if err == nil {
				saved = true
				break
			}
			lastErr = err
		}
		if !saved {
			return fmt.Errorf("failed to save quote %s after retries: %w", q.InstrumentID, lastErr)
		}
	}
	return nil
}

func (s *MarketStore) GetFxRates(ctx context.Context, pairs []models.CurrencyPair) ([]models.FxRate, error) {
	var rates []models.FxRate
	for _, p := range pairs {
		rate, err := surrealdb.Select[models.FxRate](ctx, s.db, surrealmodels.NewRecordID("fx_rate", p.Key()))
		if err != nil {
			return nil, fmt.Errorf("failed to select FX rate %s: %w", p, err)
		}
		if rate != nil && rate.Rate.Sign() > 0 {
			rates = append(rates, *rate)
		}
	}
	return rates, nil
}

func (s *MarketStore) SaveFxRates(ctx context.Context, rates []models.FxRate) error {
	for _, r := range rates {
		sql := "UPSERT $rid CONTENT $data"
		vars := map[string]any{
			"rid":  surrealmodels.NewRecordID("fx_rate", r.Pair().Key()),
			"data": r,
		}

		var lastErr error
		saved := false
		for attempt := 1; attempt <= 3; attempt++ {
			_, err := surrealdb.Query[[]models.FxRate](ctx, s.db, sql, vars)
			if err == nil {
				saved = true
				break
			}
			lastErr = err
		}
		if !saved {
			return fmt.Errorf("failed to save FX rate %s after retries: %w", r.Pair(), lastErr)
		}
	}
	return nil
}

func (s *MarketStore) GetDailyPrices(ctx context.Context, instrumentID string, from, to models.Day) ([]models.DailyPrice, error) {
	sql := "SELECT * FROM daily_price WHERE instrument_id = $id AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{
		"id":   instrumentID,
		"from": string(from),
		"to":   string(to),
	}

	results, err := surrealdb.Query[[]models.DailyPrice](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily prices: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

func (s *MarketStore) SaveDailyPrices(ctx context.Context, prices []models.DailyPrice) error {
	for _, p := range prices {
		sql := "UPSERT $rid CONTENT $data"
		vars := map[string]any{
			"rid":  surrealmodels.NewRecordID("daily_price", p.InstrumentID+":"+string(p.Date)),
			"data": p,
		}

		var lastErr error
		saved := false
		for attempt := 1; attempt <= 3; attempt++ {
			_, err := surrealdb.Query[[]models.DailyPrice](ctx, s.db, sql, vars)
			if err == nil {
				saved = true
				break
			}
			lastErr = err
		}
		if !saved {
			return fmt.Errorf("failed to save daily price %s@%s after retries: %w", p.InstrumentID, p.Date, lastErr)
		}
	}
	return nil
}

func (s *MarketStore) GetDailyFxRates(ctx context.Context, pair models.CurrencyPair, from, to models.Day) ([]models.DailyFxRate, error) {
	sql := "SELECT * FROM daily_fx_rate WHERE from_currency = $from_currency AND to_currency = $to_currency AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{
		"from_currency": string(pair.From),
		"to_currency":   string(pair.To),
		"from":          string(from),
		"to":            string(to),
	}

	results, err := surrealdb.Query[[]models.DailyFxRate](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily FX rates: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

func (s *MarketStore) SaveDailyFxRates(ctx context.Context, rates []models.DailyFxRate) error {
	for _, r := range rates {
		sql := "UPSERT $rid CONTENT $data"
		vars := map[string]any{
			"rid":  surrealmodels.NewRecordID("daily_fx_rate", r.Pair().Key()+":"+string(r.Date)),
			"data": r,
		}

		var lastErr error
		saved := false
		for attempt := 1; attempt <= 3; attempt++ {
			_, err := surrealdb.Query[[]models.DailyFxRate](ctx, s.db, sql, vars)
			if err == nil {
				saved = true
				break
			}
			lastErr = err
		}
		if !saved {
			return fmt.Errorf("failed to save daily FX rate %s@%s after retries: %w", r.Pair(), r.Date, lastErr)
		}
	}
	return nil
}
