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

type AnchorStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.AnchorStore = (*AnchorStore)(nil)

func NewAnchorStore(db *surrealdb.DB, logger *common.Logger) *AnchorStore {
	return &AnchorStore{db: db, logger: logger}
}

func anchorRecordID(userID, instrumentID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("custom_anchor", userID+":"+instrumentID)
}

func (s *AnchorStore) GetAnchor(ctx context.Context, userID, instrumentID string) (*models.CustomInstrumentAnchor, error) {
	anchor, err := surrealdb.Select[models.CustomInstrumentAnchor](ctx, s.db, anchorRecordID(userID, instrumentID))
	if err != nil {
		return nil, fmt.Errorf("failed to select anchor: %w", err)
	}
	if anchor == nil || anchor.InstrumentID == "" {
		return nil, fmt.Errorf("anchor for %s not found", instrumentID)
	}
	return anchor, nil
}

func (s *AnchorStore) SaveAnchor(ctx context.Context, anchor *models.CustomInstrumentAnchor) error {
	anchor.UpdatedAt = time.Now().UTC()

	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{
		"rid":  anchorRecordID(anchor.UserID, anchor.InstrumentID),
		"data": anchor,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.CustomInstrumentAnchor](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save anchor after retries: %w", lastErr)
}

func (s *AnchorStore) ListAnchors(ctx context.Context, userID string) ([]models.CustomInstrumentAnchor, error) {
	sql := "SELECT * FROM custom_anchor WHERE user_id = $user"
	vars := map[string]any{"user": userID}

	results, err := surrealdb.Query[[]models.CustomInstrumentAnchor](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}
