package surrealdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstolarski/folio/internal/models"
)

func newTestTransaction(id, userID string, date models.Day, seq int64) *models.Transaction {
	return &models.Transaction{
		ID:           id,
		UserID:       userID,
		InstrumentID: "cdp",
		Kind:         models.KindSecurity,
		Symbol:       "CDR.WAR",
		Currency:     models.CurrencyPLN,
		TradeDate:    date,
		Side:         models.SideBuy,
		Quantity:     decimal.RequireFromString("10"),
		Price:        decimal.RequireFromString("123.45"),
		Fee:          decimal.RequireFromString("5"),
		LegRole:      models.LegAsset,
		Seq:          seq,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestTransactionStore_AddAndGet(t *testing.T) {
	store := testManager(t).TransactionStore()
	ctx := context.Background()

	tx := newTestTransaction("tx1", "u1", "2024-06-01", 1)
	require.NoError(t, store.Add(ctx, tx))

	got, err := store.Get(ctx, "u1", "tx1")
	require.NoError(t, err)
	assert.Equal(t, "tx1", got.ID)
	assert.Equal(t, models.Day("2024-06-01"), got.TradeDate)
	assert.True(t, got.Quantity.Equal(decimal.RequireFromString("10")))
	assert.True(t, got.Price.Equal(decimal.RequireFromString("123.45")), "decimals survive the round trip")
}

func TestTransactionStore_GetForeignUserFails(t *testing.T) {
	store := testManager(t).TransactionStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, newTestTransaction("tx1", "u1", "2024-06-01", 1)))

	_, err := store.Get(ctx, "someone-else", "tx1")
	assert.Error(t, err)
}

func TestTransactionStore_ListOrderedByTradeDateThenSeq(t *testing.T) {
	store := testManager(t).TransactionStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, newTestTransaction("tx3", "u1", "2024-06-02", 3)))
	require.NoError(t, store.Add(ctx, newTestTransaction("tx1", "u1", "2024-06-01", 2)))
	require.NoError(t, store.Add(ctx, newTestTransaction("tx2", "u1", "2024-06-01", 1)))

	txs, err := store.List(ctx, "u1", models.ScopeAll, "", "")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx2", txs[0].ID)
	assert.Equal(t, "tx1", txs[1].ID)
	assert.Equal(t, "tx3", txs[2].ID)
}

func TestTransactionStore_ListUntilAndScope(t *testing.T) {
	store := testManager(t).TransactionStore()
	ctx := context.Background()

	early := newTestTransaction("tx1", "u1", "2024-06-01", 1)
	early.PortfolioID = "p1"
	late := newTestTransaction("tx2", "u1", "2024-09-01", 2)
	late.PortfolioID = "p2"
	require.NoError(t, store.Add(ctx, early))
	require.NoError(t, store.Add(ctx, late))

	txs, err := store.List(ctx, "u1", models.ScopeAll, "", "2024-07-01")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx1", txs[0].ID)

	txs, err = store.List(ctx, "u1", models.ScopePortfolio, "p2", "")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx2", txs[0].ID)
}

func TestTransactionStore_NextSeq(t *testing.T) {
	store := testManager(t).TransactionStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		seq, err := store.NextSeq(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	seq, err := store.NextSeq(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq, "each user has its own counter")
}

func TestTransactionStore_NextSeqConcurrentCallersGetUniqueValues(t *testing.T) {
	store := testManager(t).TransactionStore()
	ctx := context.Background()

	const callers = 16
	seqs := make(chan int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := store.NextSeq(ctx, "u1")
			assert.NoError(t, err)
			seqs <- seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool, callers)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d allocated twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, callers)
}

func TestTransactionStore_DeleteScopedToOwner(t *testing.T) {
	store := testManager(t).TransactionStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, newTestTransaction("tx1", "u1", "2024-06-01", 1)))

	// Deleting under the wrong user leaves the row in place.
	require.NoError(t, store.Delete(ctx, "someone-else", "tx1"))
	_, err := store.Get(ctx, "u1", "tx1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "u1", "tx1"))
	_, err = store.Get(ctx, "u1", "tx1")
	assert.Error(t, err)
}
