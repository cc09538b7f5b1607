// Package snapshot serves the persisted valuation series and the outputs
// derived from it: time-weighted returns and rendered charts.
package snapshot

import (
	"context"
	"fmt"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
	"github.com/mstolarski/folio/internal/services/twr"
)

// Service reads snapshot rows and derives return series and charts.
type Service struct {
	store  interfaces.SnapshotStore
	logger *common.Logger
}

var _ interfaces.SnapshotService = (*Service)(nil)

// NewService creates a snapshot service.
func NewService(store interfaces.SnapshotStore, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

func validateScope(scope models.Scope, portfolioID string) error {
	if scope == models.ScopePortfolio && portfolioID == "" {
		return fmt.Errorf("portfolio scope requires a portfolio id")
	}
	if scope == models.ScopeAll && portfolioID != "" {
		return fmt.Errorf("portfolio id is only valid with portfolio scope")
	}
	return nil
}

// GetSeries returns the series' rows ordered by bucket date ascending.
// days > 0 bounds the result to the most recent N days.
func (s *Service) GetSeries(ctx context.Context, userID string, scope models.Scope, portfolioID string, days int) ([]models.SnapshotRow, error) {
	if err := validateScope(scope, portfolioID); err != nil {
		return nil, err
	}
	rows, err := s.store.List(ctx, userID, scope, portfolioID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot series: %w", err)
	}
	return rows, nil
}

// GetReturns computes the daily time-weighted return series for one
// currency. One extra row before the window is fetched so the window's first
// day has a prior value to compound from; the result is trimmed back to the
// requested length.
func (s *Service) GetReturns(ctx context.Context, userID string, scope models.Scope, portfolioID string, currency models.Currency, days int) ([]models.DailyReturn, error) {
	if err := validateScope(scope, portfolioID); err != nil {
		return nil, err
	}

	limit := days
	if limit > 0 {
		limit++
	}
	rows, err := s.store.List(ctx, userID, scope, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot series: %w", err)
	}

	points := twr.PointsFromSnapshots(rows, currency)
	returns := twr.ComputeDailyReturns(points)
	if days > 0 && len(returns) > days {
		returns = returns[len(returns)-days:]
	}
	return returns, nil
}

// RenderValueChart renders the series' value in one currency as a PNG line
// chart.
func (s *Service) RenderValueChart(ctx context.Context, userID string, scope models.Scope, portfolioID string, currency models.Currency, days int) ([]byte, error) {
	rows, err := s.GetSeries(ctx, userID, scope, portfolioID, days)
	if err != nil {
		return nil, err
	}

	png, err := renderValueChart(rows, currency)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("scope", string(scope)).
		Str("currency", string(currency)).
		Int("rows", len(rows)).
		Msg("Rendered value chart")

	return png, nil
}
