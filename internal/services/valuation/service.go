package valuation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
	"github.com/mstolarski/folio/internal/services/ledger"
)

// Service values today's holdings with live market data. The ledger is
// replayed on every call; the market data service's cache keeps the provider
// traffic bounded.
type Service struct {
	transactions interfaces.TransactionStore
	anchors      interfaces.AnchorStore
	market       interfaces.MarketDataService
	logger       *common.Logger

	now func() time.Time
}

var _ interfaces.ValuationService = (*Service)(nil)

// NewService creates a valuation service.
func NewService(transactions interfaces.TransactionStore, anchors interfaces.AnchorStore, market interfaces.MarketDataService, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		transactions: transactions,
		anchors:      anchors,
		market:       market,
		logger:       logger,
		now:          time.Now,
	}
}

// Summary replays the ledger to today's holdings and values them in the base
// currency. Missing quotes or FX degrade the result to a partial summary
// rather than failing the call.
func (s *Service) Summary(ctx context.Context, userID string, scope models.Scope, portfolioID string, base models.Currency) (*models.PortfolioSummary, error) {
	if scope == models.ScopePortfolio && portfolioID == "" {
		return nil, fmt.Errorf("portfolio scope requires a portfolio id")
	}
	if _, ok := models.ParseCurrency(string(base)); !ok {
		return nil, fmt.Errorf("unsupported base currency %q", base)
	}

	txs, err := s.transactions.List(ctx, userID, scope, portfolioID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	seedAnchors, err := s.anchors.ListAnchors(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}

	today := models.DayOf(s.now().UTC())
	replayed := ledger.Replay(txs, seedAnchors, today, today)
	held := replayed.Opening
	for _, t := range replayed.Days[0].Transactions {
		ledger.ApplyTransaction(held, replayed.Anchors, t)
	}

	holdings := make([]models.Holding, 0, len(held))
	for _, h := range held {
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].InstrumentID < holdings[j].InstrumentID
	})

	if len(holdings) == 0 {
		return &models.PortfolioSummary{
			BaseCurrency: base,
			Holdings:     []models.HoldingValuation{},
		}, nil
	}

	quotes, err := s.market.GetQuotes(ctx, holdings)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve quotes: %w", err)
	}
	s.priceCustomHoldings(holdings, replayed.Anchors, today, quotes)

	fx, err := s.market.GetFxRates(ctx, conversionPairs(holdings, base))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fx rates: %w", err)
	}

	summary := ValueHoldings(base, holdings, quotes, fx)

	s.logger.Debug().
		Str("user_id", userID).
		Str("scope", string(scope)).
		Str("base", string(base)).
		Int("holdings", len(holdings)).
		Bool("partial", summary.IsPartial).
		Msg("Computed portfolio summary")

	return summary, nil
}

// priceCustomHoldings fills the quotes map with anchor-model prices for
// custom instruments, which no provider can quote.
func (s *Service) priceCustomHoldings(holdings []models.Holding, anchors map[string]models.CustomInstrumentAnchor, today models.Day, quotes map[string]models.Quote) {
	now := s.now().UTC()
	for _, h := range holdings {
		if h.Kind != models.KindCustom {
			continue
		}
		anchor, ok := anchors[h.InstrumentID]
		if !ok {
			continue
		}
		price, ok := anchor.PriceOn(today)
		if !ok || price.Sign() <= 0 {
			continue
		}
		quotes[h.InstrumentID] = models.Quote{
			InstrumentID: h.InstrumentID,
			Symbol:       h.Symbol,
			Currency:     h.Currency,
			Price:        price,
			AsOf:         now,
		}
	}
}

// conversionPairs collects the distinct (holding currency, base) pairs the
// summary needs, in holding order.
func conversionPairs(holdings []models.Holding, base models.Currency) []models.CurrencyPair {
	seen := make(map[string]bool)
	var pairs []models.CurrencyPair
	for _, h := range holdings {
		if h.Currency == base {
			continue
		}
		p := models.CurrencyPair{From: h.Currency, To: base}
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		pairs = append(pairs, p)
	}
	return pairs
}
