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

type TransactionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.TransactionStore = (*TransactionStore)(nil)

func NewTransactionStore(db *surrealdb.DB, logger *common.Logger) *TransactionStore {
	return &TransactionStore{db: db, logger: logger}
}

func (s *TransactionStore) Add(ctx context.Context, tx *models.Transaction) error {
	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("transaction", tx.ID), "data": tx}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save transaction after retries: %w", lastErr)
}

func (s *TransactionStore) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	tx, err := surrealdb.Select[models.Transaction](ctx, s.db, surrealmodels.NewRecordID("transaction", id))
	if err != nil {
		return nil, fmt.Errorf("failed to select transaction: %w", err)
	}
	if tx == nil || tx.ID == "" || tx.UserID != userID {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	return tx, nil
}

func (s *TransactionStore) Delete(ctx context.Context, userID, id string) error {
	// Scope the delete to the owner; a foreign id deletes nothing.
	sql := "DELETE transaction WHERE id = $rid AND user_id = $user"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID("transaction", id),
		"user": userID,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) List(ctx context.Context, userID string, scope models.Scope, portfolioID string, until models.Day) ([]models.Transaction, error) {
	sql := "SELECT * FROM transaction WHERE user_id = $user"
	vars := map[string]any{"user": userID}

	if scope == models.ScopePortfolio {
		sql += " AND portfolio_id = $portfolio"
		vars["portfolio"] = portfolioID
	}
	if !until.IsZero() {
		sql += " AND trade_date <= $until"
		vars["until"] = string(until)
	}
	sql += " ORDER BY trade_date ASC, seq ASC"

	results, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

// NextSeq allocates the next ledger sequence number for a user. The counter
// row is incremented server-side in one statement, so concurrent callers
// never observe the same value.
func (s *TransactionStore) NextSeq(ctx context.Context, userID string) (int64, error) {
	sql := "UPSERT $rid SET next += 1 RETURN AFTER"
	vars := map[string]any{"rid": surrealmodels.NewRecordID("ledger_seq", userID)}

	type counterRow struct {
		Next int64 `json:"next"`
	}

	results, err := surrealdb.Query[[]counterRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to advance ledger sequence: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, fmt.Errorf("ledger sequence upsert returned no row")
	}
	return (*results)[0].Result[0].Next, nil
}
