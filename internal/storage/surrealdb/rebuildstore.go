package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
)

type RebuildStateStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.RebuildStateStore = (*RebuildStateStore)(nil)

func NewRebuildStateStore(db *surrealdb.DB, logger *common.Logger) *RebuildStateStore {
	return &RebuildStateStore{db: db, logger: logger}
}

func (s *RebuildStateStore) Get(ctx context.Context, userID string, scope models.Scope, portfolioID string) (*models.RebuildState, error) {
	rid := surrealmodels.NewRecordID("rebuild_state", models.SeriesKey(userID, scope, portfolioID))
	state, err := surrealdb.Select[models.RebuildState](ctx, s.db, rid)
	if err != nil {
		return nil, fmt.Errorf("failed to select rebuild state: %w", err)
	}
	if state == nil || state.ID == "" {
		return nil, nil
	}
	return state, nil
}

// Save upserts the state row. The UpdatedAt stamp is written to the passed
// value first; rebuild runs compare it against later reads to detect
// concurrent writers.
func (s *RebuildStateStore) Save(ctx context.Context, state *models.RebuildState) error {
	if state.ID == "" {
		state.ID = state.Key()
	}
	state.UpdatedAt = time.Now().UTC()

	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID("rebuild_state", state.ID),
		"data": state,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.RebuildState](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save rebuild state after retries: %w", lastErr)
}
