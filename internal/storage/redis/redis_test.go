package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discord-voice-time/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := Open(Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestIncrementTotalCreatesAndAccumulates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	total, err := store.IncrementTotal(ctx, "u1", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), total)

	total, err = store.IncrementTotal(ctx, "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(90), total)

	got, err := store.GetTotal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(90), got)
}

func TestGetTotalMissingUser(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetTotal(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListTotalsReturnsAllRows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _ = store.IncrementTotal(ctx, "u1", 10)
	_, _ = store.IncrementTotal(ctx, "u2", 20)
	_, _ = store.IncrementTotal(ctx, "u3", 30)

	totals, err := store.ListTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 3)

	byUser := make(map[string]int64, len(totals))
	for _, row := range totals {
		byUser[row.UserID] = row.TotalSeconds
	}
	assert.Equal(t, int64(10), byUser["u1"])
	assert.Equal(t, int64(20), byUser["u2"])
	assert.Equal(t, int64(30), byUser["u3"])
}

func TestDeleteTotals(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, _ = store.IncrementTotal(ctx, "u1", 10)
	_, _ = store.IncrementTotal(ctx, "u2", 20)

	require.NoError(t, store.DeleteTotals(ctx, "u1"))

	_, err := store.GetTotal(ctx, "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.GetTotal(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(20), got)
}

func TestDeleteTotalsEmptyList(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.DeleteTotals(context.Background()))
}

func TestConcurrentIncrementsSumExactly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Two racing flushes for the same user must both land: the increment is
	// commutative, not last-write-wins.
	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.IncrementTotal(ctx, "u1", int64(n+1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.GetTotal(ctx, "u1")
	require.NoError(t, err)
	// sum of 1..50
	assert.Equal(t, int64(workers*(workers+1)/2), got)
}

func TestListTotalsSkipsMalformedFields(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := Open(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	_, _ = store.IncrementTotal(ctx, "u1", 10)
	mr.HSet(totalsKey, "broken", "not-a-number")

	totals, err := store.ListTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "u1", totals[0].UserID)
}

func TestOpenFailsWhenRedisUnreachable(t *testing.T) {
	_, err := Open(Config{Addr: fmt.Sprintf("127.0.0.1:%d", 1)})
	assert.Error(t, err)
}
