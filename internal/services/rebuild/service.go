package rebuild

import (
	"context"
	"fmt"
	"time"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
	"github.com/mstolarski/folio/internal/services/ledger"
	"github.com/mstolarski/folio/internal/services/marketdata"
)

// Service coordinates snapshot rebuilds across short-lived invocations.
// There is no in-process lock: the persisted rebuild state row is the mutual
// exclusion signal, with a staleness timeout recovering from abandoned
// runners.
type Service struct {
	states       interfaces.RebuildStateStore
	snapshots    interfaces.SnapshotStore
	transactions interfaces.TransactionStore
	anchors      interfaces.AnchorStore
	market       interfaces.MarketDataService
	logger       *common.Logger

	staleRunningAfter time.Duration
	defaults          interfaces.RunOptions

	now func() time.Time
}

var _ interfaces.RebuildService = (*Service)(nil)

func NewService(
	states interfaces.RebuildStateStore,
	snapshots interfaces.SnapshotStore,
	transactions interfaces.TransactionStore,
	anchors interfaces.AnchorStore,
	market interfaces.MarketDataService,
	cfg *common.RebuildConfig,
	logger *common.Logger,
) *Service {
	return &Service{
		states:            states,
		snapshots:         snapshots,
		transactions:      transactions,
		anchors:           anchors,
		market:            market,
		logger:            logger,
		staleRunningAfter: cfg.GetStaleRunningAfter(),
		defaults: interfaces.RunOptions{
			MaxDaysPerRun: cfg.MaxDaysPerRun,
			TimeBudget:    cfg.GetTimeBudget(),
		},
		now: time.Now,
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

// MarkDirty widens the series' dirty range to include date. Merging takes
// the earlier dirty-from/from-date and the later to-date, so any sequence of
// calls in any order converges to the same range. Status moves to queued
// unless a worker is running; a running worker picks up the widened range on
// its next state read.
func (s *Service) MarkDirty(ctx context.Context, userID string, scope models.Scope, portfolioID string, date models.Day) error {
	if err := validateScope(scope, portfolioID); err != nil {
		return err
	}

	state, err := s.states.Get(ctx, userID, scope, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to read rebuild state: %w", err)
	}

	today := models.DayOf(s.now())
	if state == nil {
		state = &models.RebuildState{
			ID:          models.SeriesKey(userID, scope, portfolioID),
			UserID:      userID,
			Scope:       scope,
			PortfolioID: portfolioID,
		}
	}

	state.DirtyFrom = models.MinDay(state.DirtyFrom, date)
	state.FromDate = models.MinDay(state.FromDate, date)
	state.ToDate = models.MaxDay(models.MaxDay(state.ToDate, today), date)
	// A dirty day at or before the processed watermark reopens that span;
	// the next run must recompute from the dirty day, not resume past it.
	if !state.ProcessedUntil.IsZero() && !date.After(state.ProcessedUntil) {
		state.ProcessedUntil = date.Add(-1)
	}
	if state.Status != models.RebuildRunning {
		state.Status = models.RebuildQueued
	}

	if err := s.states.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save rebuild state: %w", err)
	}

	s.logger.Debug().Str("series", state.Key()).Str("dirty_from", string(state.DirtyFrom)).
		Msg("Snapshot series marked dirty")
	return nil
}

// Status returns the current state row, or a synthetic idle state for series
// that have never been dirtied.
func (s *Service) Status(ctx context.Context, userID string, scope models.Scope, portfolioID string) (*models.RebuildState, error) {
	if err := validateScope(scope, portfolioID); err != nil {
		return nil, err
	}
	state, err := s.states.Get(ctx, userID, scope, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to read rebuild state: %w", err)
	}
	if state == nil {
		state = &models.RebuildState{
			ID:     models.SeriesKey(userID, scope, portfolioID),
			UserID: userID, Scope: scope, PortfolioID: portfolioID,
			Status: models.RebuildIdle,
		}
	}
	return state, nil
}

// SuggestPollDelay tells a polling caller how long to wait before asking for
// status again: short while work is queued or freshly running, backing off
// as a run ages, zero once there is nothing in flight.
func SuggestPollDelay(state *models.RebuildState, now time.Time) time.Duration {
	switch state.Status {
	case models.RebuildQueued:
		return time.Second
	case models.RebuildRunning:
		if now.Sub(state.UpdatedAt) < 15*time.Second {
			return 2 * time.Second
		}
		return 5 * time.Second
	default:
		return 0
	}
}

// RunStep executes at most one bounded chunk loop against the series' dirty
// range. It returns without working when nothing is dirty or another
// invocation owns a non-stale running state. Infrastructure errors flip the
// state to failed with the range fields preserved, so the next attempt
// resumes instead of restarting.
func (s *Service) RunStep(ctx context.Context, userID string, scope models.Scope, portfolioID string, opts interfaces.RunOptions) (*models.RebuildState, error) {
	if err := validateScope(scope, portfolioID); err != nil {
		return nil, err
	}
	if opts.MaxDaysPerRun <= 0 {
		opts.MaxDaysPerRun = s.defaults.MaxDaysPerRun
	}
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = s.defaults.TimeBudget
	}

	state, err := s.states.Get(ctx, userID, scope, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to read rebuild state: %w", err)
	}
	if state == nil || state.DirtyFrom.IsZero() {
		return s.Status(ctx, userID, scope, portfolioID)
	}

	start := s.now()
	if state.Status == models.RebuildRunning && start.Sub(state.UpdatedAt) <= s.staleRunningAfter {
		// Another invocation owns this series.
		return state, nil
	}
	if state.Status == models.RebuildRunning {
		s.logger.Warn().Str("series", state.Key()).Time("last_update", state.UpdatedAt).
			Msg("Recovering stale running rebuild")
	}

	rangeFrom := state.FromDate
	if rangeFrom.IsZero() {
		rangeFrom = state.DirtyFrom
	}
	to := models.MaxDay(state.ToDate, models.DayOf(start))

	// Resume past days an earlier invocation already wrote. MarkDirty pulls
	// the watermark back when a dirty day lands inside the processed span.
	from := rangeFrom
	if !state.ProcessedUntil.IsZero() {
		if next := state.ProcessedUntil.Add(1); next.After(from) {
			from = next
		}
	}
	if from.After(to) {
		state.Status = models.RebuildIdle
		state.DirtyFrom = ""
		state.FromDate = ""
		state.ToDate = ""
		state.ProcessedUntil = ""
		if err := s.states.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to save rebuild state: %w", err)
		}
		return state, nil
	}

	state.Status = models.RebuildRunning
	state.FromDate = rangeFrom
	state.ToDate = to
	state.Message = ""
	if err := s.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to claim rebuild state: %w", err)
	}

	session, err := s.buildSession(ctx, userID, scope, portfolioID, from, to)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	deadline := start.Add(opts.TimeBudget)
	for {
		rows, chunkFrom, chunkTo, more := session.ProcessNextChunk(opts.MaxDaysPerRun)
		if chunkFrom.IsZero() {
			break
		}

		now := s.now()
		for i := range rows {
			rows[i].UpdatedAt = now
			rows[i].RoundForStorage()
		}
		if err := s.snapshots.ReplaceRange(ctx, userID, scope, portfolioID, chunkFrom, chunkTo, rows); err != nil {
			return s.fail(ctx, state, fmt.Errorf("failed to replace snapshot rows [%s, %s]: %w", chunkFrom, chunkTo, err))
		}

		// Re-read to detect a concurrent write. Any stamp other than our own
		// last save means a writer dirtied the range mid-run, even if it
		// widened to the same values; abandon conservatively rather than
		// risk under-counting. Progress counts up to chunkTo unless the
		// concurrent dirty day falls at or before it, in which case the
		// watermark stops just short of the dirty day so the next run
		// recomputes it.
		latest, err := s.states.Get(ctx, userID, scope, portfolioID)
		if err != nil {
			return s.fail(ctx, state, fmt.Errorf("failed to re-read rebuild state: %w", err))
		}
		if latest == nil {
			return s.fail(ctx, state, fmt.Errorf("rebuild state row disappeared mid-run"))
		}

		if !latest.UpdatedAt.Equal(state.UpdatedAt) {
			s.logger.Info().Str("series", latest.Key()).
				Str("dirty_from", string(latest.DirtyFrom)).
				Msg("Concurrent dirty update detected, abandoning run")
			latest.Status = models.RebuildQueued
			latest.ProcessedUntil = chunkTo
			if !latest.DirtyFrom.IsZero() && !latest.DirtyFrom.After(chunkTo) {
				latest.ProcessedUntil = latest.DirtyFrom.Add(-1)
			}
			if err := s.states.Save(ctx, latest); err != nil {
				return nil, fmt.Errorf("failed to save rebuild state: %w", err)
			}
			return latest, nil
		}
		state = latest

		state.Status = models.RebuildRunning
		state.ProcessedUntil = chunkTo

		if !more {
			// A clean slate makes the next dirty event's range start at the
			// dirty day itself instead of this run's historical from-date.
			state.Status = models.RebuildIdle
			state.DirtyFrom = ""
			state.FromDate = ""
			state.ToDate = ""
			state.ProcessedUntil = ""
			if err := s.states.Save(ctx, state); err != nil {
				return nil, fmt.Errorf("failed to save rebuild state: %w", err)
			}
			s.logger.Info().Str("series", state.Key()).
				Str("from", string(from)).Str("to", string(to)).
				Msg("Snapshot rebuild complete")
			return state, nil
		}

		if err := s.states.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to save rebuild state: %w", err)
		}

		if s.now().After(deadline) {
			state.Status = models.RebuildQueued
			if err := s.states.Save(ctx, state); err != nil {
				return nil, fmt.Errorf("failed to save rebuild state: %w", err)
			}
			s.logger.Debug().Str("series", state.Key()).
				Str("processed_until", string(state.ProcessedUntil)).
				Msg("Rebuild time budget exhausted, requeued")
			return state, nil
		}
	}

	return state, nil
}

// buildSession runs ledger replay once for the whole range and preloads one
// cursor series per held security and per needed currency pair.
func (s *Service) buildSession(ctx context.Context, userID string, scope models.Scope, portfolioID string, from, to models.Day) (*Session, error) {
	txs, err := s.transactions.List(ctx, userID, scope, portfolioID, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	anchorRows, err := s.anchors.ListAnchors(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load anchors: %w", err)
	}

	replay := ledger.Replay(txs, anchorRows, from, to)

	// Series start a lookback window early so the first days of the range
	// can fill from the previous session.
	seriesFrom := from.Add(-common.CursorLookbackDays)

	type instrument struct{ id, symbol string }
	securities := make(map[string]instrument)
	currencies := make(map[models.Currency]bool)
	for _, t := range txs {
		currencies[t.Currency] = true
		if t.Kind == models.KindSecurity {
			securities[t.InstrumentID] = instrument{id: t.InstrumentID, symbol: t.Symbol}
		}
	}

	prices := make(map[string][]models.DailyPrice, len(securities))
	for _, inst := range securities {
		series, err := s.market.DailyPriceSeries(ctx, inst.id, inst.symbol, seriesFrom, to)
		if err != nil {
			return nil, fmt.Errorf("failed to preload price series for %s: %w", inst.symbol, err)
		}
		prices[inst.id] = series
	}

	fx := make(map[models.CurrencyPair][]models.DailyFxRate)
	for from := range currencies {
		for _, base := range models.SupportedCurrencies {
			if from == base {
				continue
			}
			pair := models.CurrencyPair{From: from, To: base}
			series, err := s.market.DailyFxSeries(ctx, pair, seriesFrom, to)
			if err != nil {
				return nil, fmt.Errorf("failed to preload FX series for %s: %w", pair, err)
			}
			fx[pair] = series
		}
	}

	cursor := marketdata.NewRangeCursor(prices, fx)
	return NewSession(userID, scope, portfolioID, replay, cursor), nil
}

// fail persists the failed status with the error message, preserving the
// range fields so the next attempt resumes where this one stopped.
func (s *Service) fail(ctx context.Context, state *models.RebuildState, cause error) (*models.RebuildState, error) {
	s.logger.Error().Err(cause).Str("series", state.Key()).Msg("Snapshot rebuild failed")
	state.Status = models.RebuildFailed
	state.Message = cause.Error()
	if err := s.states.Save(ctx, state); err != nil {
		s.logger.Error().Err(err).Str("series", state.Key()).Msg("Failed to persist failed rebuild state")
	}
	return state, cause
}
