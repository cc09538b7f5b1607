package surrealdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstolarski/folio/internal/models"
)

func TestRebuildStateStore_GetMissingReturnsNil(t *testing.T) {
	store := testManager(t).RebuildStateStore()

	state, err := store.Get(context.Background(), "u1", models.ScopeAll, "")
	require.NoError(t, err)
	assert.Nil(t, state, "a never-dirtied series has no state row")
}

func TestRebuildStateStore_SaveStampsAndRoundTrips(t *testing.T) {
	store := testManager(t).RebuildStateStore()
	ctx := context.Background()

	state := &models.RebuildState{
		UserID:    "u1",
		Scope:     models.ScopeAll,
		DirtyFrom: "2024-06-01",
		FromDate:  "2024-06-01",
		ToDate:    "2024-06-30",
		Status:    models.RebuildQueued,
	}
	require.NoError(t, store.Save(ctx, state))
	assert.Equal(t, "u1:all", state.ID, "the series key becomes the row id")
	assert.False(t, state.UpdatedAt.IsZero(), "the stamp is written back to the passed value")

	got, err := store.Get(ctx, "u1", models.ScopeAll, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RebuildQueued, got.Status)
	assert.Equal(t, models.Day("2024-06-01"), got.DirtyFrom)
	assert.Equal(t, state.UpdatedAt.Unix(), got.UpdatedAt.Unix())
}

func TestRebuildStateStore_SaveIsUpsert(t *testing.T) {
	store := testManager(t).RebuildStateStore()
	ctx := context.Background()

	state := &models.RebuildState{
		UserID: "u1", Scope: models.ScopeAll,
		DirtyFrom: "2024-06-01", Status: models.RebuildQueued,
	}
	require.NoError(t, store.Save(ctx, state))

	state.Status = models.RebuildIdle
	state.DirtyFrom = ""
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Get(ctx, "u1", models.ScopeAll, "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.RebuildIdle, got.Status)
	assert.True(t, got.DirtyFrom.IsZero())
}

func TestRebuildStateStore_PortfolioSeriesAreSeparate(t *testing.T) {
	store := testManager(t).RebuildStateStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.RebuildState{
		UserID: "u1", Scope: models.ScopeAll, Status: models.RebuildQueued,
	}))
	require.NoError(t, store.Save(ctx, &models.RebuildState{
		UserID: "u1", Scope: models.ScopePortfolio, PortfolioID: "p1",
		Status: models.RebuildRunning,
	}))

	all, err := store.Get(ctx, "u1", models.ScopeAll, "")
	require.NoError(t, err)
	require.NotNil(t, all)
	assert.Equal(t, models.RebuildQueued, all.Status)

	scoped, err := store.Get(ctx, "u1", models.ScopePortfolio, "p1")
	require.NoError(t, err)
	require.NotNil(t, scoped)
	assert.Equal(t, models.RebuildRunning, scoped.Status)
}
