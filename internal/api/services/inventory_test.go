package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/domain"
	inventoryredis "pantry/internal/redis"
)

func TestInventoryService_Add(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	service, _ := setupInventory(t, notifier)

	t.Run("creates and increments", func(t *testing.T) {
		item, err := service.Add(ctx, "bread", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, item.Quantity)

		item, err = service.Add(ctx, "bread", 2)
		require.NoError(t, err)
		assert.Equal(t, 3, item.Quantity)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := service.Add(ctx, "", 1)
		assert.ErrorIs(t, err, domain.ErrInvalidItemName)

		_, err = service.Add(ctx, "milk", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidDelta)
	})

	t.Run("notifies on success only", func(t *testing.T) {
		require.Len(t, notifier.items, 2)
		assert.Equal(t, domain.InventoryItem{Name: "bread", Quantity: 3}, notifier.items[1])
	})
}

func TestInventoryService_NotifierErrorDoesNotFailMutation(t *testing.T) {
	service, _ := setupInventory(t, &recordingNotifier{err: errBoom})

	item, err := service.Add(context.Background(), "eggs", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, item.Quantity)
}

func TestInventoryService_Remove(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	service, _ := setupInventory(t, notifier)

	_, err := service.Add(ctx, "bread", 2)
	require.NoError(t, err)

	item, err := service.Remove(ctx, "bread")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)

	item, err = service.Remove(ctx, "bread")
	require.NoError(t, err)
	assert.True(t, item.Deleted())

	_, err = service.Get(ctx, "bread")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	_, err = service.Remove(ctx, "bread")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	require.Len(t, notifier.items, 3)
	assert.Equal(t, 0, notifier.items[2].Quantity)
}

func TestInventoryService_List(t *testing.T) {
	ctx := context.Background()
	service, _ := setupInventory(t)

	for name, qty := range map[string]int{"bread": 2, "Brown Rice": 1, "milk": 2} {
		_, err := service.Add(ctx, name, qty)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter InventoryFilter
		want   []string
	}{
		{"no filter", InventoryFilter{}, []string{"Brown Rice", "bread", "milk"}},
		{"search is case insensitive", InventoryFilter{Search: "BR"}, []string{"Brown Rice", "bread"}},
		{"quantity", InventoryFilter{Quantity: 2}, []string{"bread", "milk"}},
		{"both", InventoryFilter{Search: "r", Quantity: 1}, []string{"Brown Rice"}},
		{"no match", InventoryFilter{Search: "cheese"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := service.List(ctx, tt.filter)
			require.NoError(t, err)

			names := make([]string, 0, len(items))
			for _, item := range items {
				names = append(names, item.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestInventoryService_Merge(t *testing.T) {
	ctx := context.Background()

	t.Run("adds to existing quantities", func(t *testing.T) {
		service, _ := setupInventory(t)
		_, err := service.Add(ctx, "bread", 1)
		require.NoError(t, err)

		applied, err := service.Merge(ctx, domain.IngestionResult{"bread": 2, "eggs": 6})
		require.NoError(t, err)
		require.Len(t, applied, 2)
		assert.Equal(t, &domain.InventoryItem{Name: "bread", Quantity: 3}, applied[0])
		assert.Equal(t, &domain.InventoryItem{Name: "eggs", Quantity: 6}, applied[1])
	})

	t.Run("invalid result writes nothing", func(t *testing.T) {
		service, s := setupInventory(t)

		_, err := service.Merge(ctx, domain.IngestionResult{"bread": 1, "milk": -1})
		assert.ErrorIs(t, err, domain.ErrInvalidDelta)
		assert.False(t, s.Exists(inventoryredis.DefaultInventoryKey))
	})

	t.Run("empty result", func(t *testing.T) {
		service, _ := setupInventory(t)

		_, err := service.Merge(ctx, domain.IngestionResult{})
		assert.Error(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		service, s := setupInventory(t)
		s.SetError("connection lost")
		defer s.SetError("")

		applied, err := service.Merge(ctx, domain.IngestionResult{"bread": 1})
		assert.ErrorIs(t, err, ErrMergeFailure)
		assert.Empty(t, applied)
	})
}
