// Package surrealdb implements the storage interfaces on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	userStore        *UserStore
	transactionStore *TransactionStore
	anchorStore      *AnchorStore
	snapshotStore    *SnapshotStore
	rebuildStore     *RebuildStateStore
	marketStore      *MarketStore
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager connects to SurrealDB and prepares all stores.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := newManagerWithDB(db, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// newManagerWithDB defines tables and wires stores on an already-selected
// connection. Tests use it with a container-backed DB.
func newManagerWithDB(db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	ctx := context.Background()

	// SurrealDB v3 errors on querying tables that were never defined.
	tables := []string{
		"user", "transaction", "custom_anchor",
		"snapshot", "rebuild_state",
		"quote", "fx_rate", "daily_price", "daily_fx_rate",
	}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	m := &Manager{db: db, logger: logger}
	m.userStore = NewUserStore(db, logger)
	m.transactionStore = NewTransactionStore(db, logger)
	m.anchorStore = NewAnchorStore(db, logger)
	m.snapshotStore = NewSnapshotStore(db, logger)
	m.rebuildStore = NewRebuildStateStore(db, logger)
	m.marketStore = NewMarketStore(db, logger)
	return m, nil
}

func (m *Manager) UserStore() interfaces.UserStore { return m.userStore }

func (m *Manager) TransactionStore() interfaces.TransactionStore { return m.transactionStore }

func (m *Manager) AnchorStore() interfaces.AnchorStore { return m.anchorStore }

func (m *Manager) SnapshotStore() interfaces.SnapshotStore { return m.snapshotStore }

func (m *Manager) RebuildStateStore() interfaces.RebuildStateStore { return m.rebuildStore }

func (m *Manager) MarketStore() interfaces.MarketStore { return m.marketStore }

func (m *Manager) Close() error {
	return m.db.Close(context.Background())
}
