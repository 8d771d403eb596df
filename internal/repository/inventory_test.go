package repository

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/domain"
	"pantry/internal/testutil"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	log.Println("[TestMain] Starting test setup for repository package")

	db, err := testutil.SetupTestDB("../../.env.test", "../../migrations")
	if err != nil {
		log.Printf("[TestMain] Test database unavailable, postgres tests will be skipped: %v", err)
	} else {
		testDB = db
		log.Println("[TestMain] Test database connected successfully")
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

func TestInventoryRepository_UpsertAdd(t *testing.T) {
	testutil.RequireDB(t, testDB)
	testutil.ResetInventory(t, testDB)
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	t.Run("creates absent item", func(t *testing.T) {
		item, err := repo.UpsertAdd(ctx, "milk", 2)
		require.NoError(t, err)
		assert.Equal(t, "milk", item.Name)
		assert.Equal(t, 2, item.Quantity)
	})

	t.Run("adds to existing item", func(t *testing.T) {
		item, err := repo.UpsertAdd(ctx, "milk", 3)
		require.NoError(t, err)
		assert.Equal(t, 5, item.Quantity)

		got, err := repo.Get(ctx, "milk")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Quantity)
	})

	t.Run("rejects non-positive delta", func(t *testing.T) {
		_, err := repo.UpsertAdd(ctx, "milk", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidDelta)
	})
}

func TestInventoryRepository_DecrementOrDelete(t *testing.T) {
	testutil.RequireDB(t, testDB)
	testutil.ResetInventory(t, testDB)
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	_, err := repo.UpsertAdd(ctx, "eggs", 2)
	require.NoError(t, err)

	item, err := repo.DecrementOrDelete(ctx, "eggs")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)

	item, err = repo.DecrementOrDelete(ctx, "eggs")
	require.NoError(t, err)
	assert.True(t, item.Deleted())

	_, err = repo.Get(ctx, "eggs")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = repo.DecrementOrDelete(ctx, "eggs")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestInventoryRepository_List(t *testing.T) {
	testutil.RequireDB(t, testDB)
	testutil.ResetInventory(t, testDB)
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	for name, qty := range map[string]int{"tomato": 4, "apple": 1, "Zucchini": 2} {
		_, err := repo.UpsertAdd(ctx, name, qty)
		require.NoError(t, err)
	}

	items, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Zucchini", items[0].Name)
	assert.Equal(t, "apple", items[1].Name)
	assert.Equal(t, "tomato", items[2].Name)
}

func TestInventoryRepository_ConcurrentUpsertAdd(t *testing.T) {
	testutil.RequireDB(t, testDB)
	testutil.ResetInventory(t, testDB)
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpsertAdd(ctx, "apple", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	item, err := repo.Get(ctx, "apple")
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
}

func TestInventoryRepository_ConcurrentDecrementOrDelete(t *testing.T) {
	testutil.RequireDB(t, testDB)
	testutil.ResetInventory(t, testDB)
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	_, err := repo.UpsertAdd(ctx, "yogurt", 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	deleted := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := repo.DecrementOrDelete(ctx, "yogurt")
			if !assert.NoError(t, err) {
				return
			}
			if item.Deleted() {
				mu.Lock()
				deleted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, deleted)
	_, err = repo.Get(ctx, "yogurt")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}
