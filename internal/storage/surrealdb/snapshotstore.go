package surrealdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/surrealdb/surrealdb.go"

	"github.com/mstolarski/folio/internal/common"
	"github.com/mstolarski/folio/internal/interfaces"
	"github.com/mstolarski/folio/internal/models"
)

type SnapshotStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(db *surrealdb.DB, logger *common.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

// ReplaceRange rewrites one series' rows for [from, to] in a single database
// transaction. Delete-then-insert, not upsert: a rebuilt chunk may produce
// fewer rows than the span had before, and stale rows must not survive.
func (s *SnapshotStore) ReplaceRange(ctx context.Context, userID string, scope models.Scope, portfolioID string, from, to models.Day, rows []models.SnapshotRow) error {
	sql := `BEGIN TRANSACTION;
DELETE snapshot WHERE user_id = $user AND scope = $scope AND portfolio_id = $portfolio AND bucket_date >= $from AND bucket_date <= $to;
FOR $row IN $rows {
	UPSERT type::thing("snapshot", string::concat($key, ":", $row.bucket_date)) CONTENT $row;
};
COMMIT TRANSACTION;`
	vars := map[string]any{
		"user":      userID,
		"scope":     string(scope),
		"portfolio": portfolioID,
		"from":      string(from),
		"to":        string(to),
		"key":       models.SeriesKey(userID, scope, portfolioID),
		"rows":      rows,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to replace snapshot rows after retries: %w", lastErr)
}

func (s *SnapshotStore) List(ctx context.Context, userID string, scope models.Scope, portfolioID string, limit int) ([]models.SnapshotRow, error) {
	sql := "SELECT * FROM snapshot WHERE user_id = $user AND scope = $scope AND portfolio_id = $portfolio"
	vars := map[string]any{
		"user":      userID,
		"scope":     string(scope),
		"portfolio": portfolioID,
	}

	if limit > 0 {
		// Most recent N days, still returned ascending.
		sql += " ORDER BY bucket_date DESC LIMIT $limit"
		vars["limit"] = limit
	} else {
		sql += " ORDER BY bucket_date ASC"
	}

	results, err := surrealdb.Query[[]models.SnapshotRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var rows []models.SnapshotRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}
	if limit > 0 {
		sort.Slice(rows, func(i, j int) bool { return rows[i].BucketDate.Before(rows[j].BucketDate) })
	}
	return rows, nil
}
