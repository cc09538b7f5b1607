package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
)

// Service manages the append-only transaction ledger. Every mutation marks
// the affected snapshot series dirty at the entry's trade date so the next
// rebuild recomputes from there.
type Service struct {
	transactions interfaces.TransactionStore
	anchors      interfaces.AnchorStore
	rebuild      interfaces.RebuildService
	logger       *common.Logger

	now func() time.Time
}

var _ interfaces.LedgerService = (*Service)(nil)

// NewService creates a ledger service.
func NewService(transactions interfaces.TransactionStore, anchors interfaces.AnchorStore, rebuild interfaces.RebuildService, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		transactions: transactions,
		anchors:      anchors,
		rebuild:      rebuild,
		logger:       logger,
		now:          time.Now,
	}
}

func validateTransaction(tx *models.Transaction) error {
	if tx.UserID == "" {
		return fmt.Errorf("transaction requires a user id")
	}
	if tx.InstrumentID == "" {
		return fmt.Errorf("transaction requires an instrument id")
	}
	switch tx.Kind {
	case models.KindSecurity, models.KindCurrency, models.KindCustom:
	default:
		return fmt.Errorf("unknown instrument kind %q", tx.Kind)
	}
	switch tx.Side {
	case models.SideBuy, models.SideSell:
	default:
		return fmt.Errorf("unknown transaction side %q", tx.Side)
	}
	if _, ok := models.ParseCurrency(string(tx.Currency)); !ok {
		return fmt.Errorf("unsupported currency %q", tx.Currency)
	}
	if _, err := models.ParseDay(string(tx.TradeDate)); err != nil {
		return fmt.Errorf("invalid trade date %q", tx.TradeDate)
	}
	if tx.Quantity.Sign() <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if tx.Price.Sign() < 0 {
		return fmt.Errorf("price must not be negative")
	}
	if tx.Fee.Sign() < 0 {
		return fmt.Errorf("fee must not be negative")
	}
	if tx.CashflowType != "" {
		if tx.Kind != models.KindCurrency {
			return fmt.Errorf("cashflow type is only valid on currency entries")
		}
		switch tx.CashflowType {
		case models.CashflowDeposit, models.CashflowWithdrawal:
		default:
			return fmt.Errorf("unknown cashflow type %q", tx.CashflowType)
		}
	}
	return nil
}

// AddTransaction validates, numbers and persists a ledger entry, moves the
// custom instrument anchor when the entry is a custom asset leg, and marks
// the entry's series dirty at its trade date.
func (s *Service) AddTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	// Replay classifies leg roles explicitly; default them from the kind so
	// callers only set LegRole for grouped events.
	if tx.LegRole == "" {
		if tx.Kind == models.KindCurrency {
			if tx.GroupID != "" {
				tx.LegRole = models.LegCash
			}
		} else {
			tx.LegRole = models.LegAsset
		}
	}

	if err := validateTransaction(tx); err != nil {
		return nil, err
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	seq, err := s.transactions.NextSeq(ctx, tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to number transaction: %w", err)
	}
	tx.Seq = seq
	tx.CreatedAt = s.now().UTC()

	if err := s.transactions.Add(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	if tx.Kind == models.KindCustom && tx.LegRole == models.LegAsset {
		if err := s.moveAnchor(ctx, tx); err != nil {
			return nil, err
		}
	}

	if err := s.markDirty(ctx, tx.UserID, tx.PortfolioID, tx.TradeDate); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", tx.UserID).
		Str("transaction_id", tx.ID).
		Str("instrument_id", tx.InstrumentID).
		Str("trade_date", string(tx.TradeDate)).
		Msg("Transaction added")

	return tx, nil
}

// moveAnchor advances the instrument's anchor to the entry's (date, price).
// An earlier-dated entry leaves a later anchor in place; the anchor only
// moves forward.
func (s *Service) moveAnchor(ctx context.Context, tx *models.Transaction) error {
	anchor, err := s.anchors.GetAnchor(ctx, tx.UserID, tx.InstrumentID)
	if err != nil {
		return fmt.Errorf("failed to read anchor: %w", err)
	}
	if anchor == nil {
		anchor = &models.CustomInstrumentAnchor{
			UserID:       tx.UserID,
			InstrumentID: tx.InstrumentID,
		}
	} else if tx.TradeDate.Before(anchor.AnchorDate) {
		if tx.AnnualRatePct == nil {
			return nil
		}
		anchor.AnnualRatePct = *tx.AnnualRatePct
		anchor.UpdatedAt = s.now().UTC()
		if err := s.anchors.SaveAnchor(ctx, anchor); err != nil {
			return fmt.Errorf("failed to save anchor: %w", err)
		}
		return nil
	}

	anchor.AnchorDate = tx.TradeDate
	anchor.AnchorPrice = tx.Price
	if tx.AnnualRatePct != nil {
		anchor.AnnualRatePct = *tx.AnnualRatePct
	}
	anchor.UpdatedAt = s.now().UTC()

	if err := s.anchors.SaveAnchor(ctx, anchor); err != nil {
		return fmt.Errorf("failed to save anchor: %w", err)
	}
	return nil
}

// DeleteTransaction removes the entry and marks its series dirty at the
// removed trade date, since every later day's holdings depended on it.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) error {
	tx, err := s.transactions.Get(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to read transaction: %w", err)
	}

	if err := s.transactions.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	if err := s.markDirty(ctx, userID, tx.PortfolioID, tx.TradeDate); err != nil {
		return err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("transaction_id", id).
		Str("trade_date", string(tx.TradeDate)).
		Msg("Transaction deleted")

	return nil
}

// ListTransactions returns the ledger slice in replay order.
func (s *Service) ListTransactions(ctx context.Context, userID string, scope models.Scope, portfolioID string) ([]models.Transaction, error) {
	if scope == models.ScopePortfolio && portfolioID == "" {
		return nil, fmt.Errorf("portfolio scope requires a portfolio id")
	}
	txs, err := s.transactions.List(ctx, userID, scope, portfolioID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// markDirty touches the all-scope series and, when the entry belongs to a
// portfolio, that portfolio's series too.
func (s *Service) markDirty(ctx context.Context, userID, portfolioID string, date models.Day) error {
	if err := s.rebuild.MarkDirty(ctx, userID, models.ScopeAll, "", date); err != nil {
		return fmt.Errorf("failed to mark series dirty: %w", err)
	}
	if portfolioID != "" {
		if err := s.rebuild.MarkDirty(ctx, userID, models.ScopePortfolio, portfolioID, date); err != nil {
			return fmt.Errorf("failed to mark portfolio series dirty: %w", err)
		}
	}
	return nil
}
