package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"pantry/internal/domain"
)

type InventoryRepository struct {
	db *sqlx.DB
}

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) Get(ctx context.Context, name string) (*domain.InventoryItem, error) {
	query := `SELECT name, quantity FROM inventory_items WHERE name = $1`

	item := &domain.InventoryItem{}
	err := r.db.GetContext(ctx, item, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}

	return item, nil
}

func (r *InventoryRepository) UpsertAdd(ctx context.Context, name string, delta int) (*domain.InventoryItem, error) {
	if err := domain.ValidateDelta(delta); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO inventory_items (name, quantity)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
			SET quantity = inventory_items.quantity + EXCLUDED.quantity,
			    updated_at = CURRENT_TIMESTAMP
		RETURNING name, quantity
	`

	item := &domain.InventoryItem{}
	if err := r.db.GetContext(ctx, item, query, name, delta); err != nil {
		return nil, err
	}

	return item, nil
}

func (r *InventoryRepository) DecrementOrDelete(ctx context.Context, name string) (*domain.InventoryItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var quantity int
	lockQuery := `SELECT quantity FROM inventory_items WHERE name = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &quantity, lockQuery, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}

	if quantity <= 1 {
		deleteQuery := `DELETE FROM inventory_items WHERE name = $1`
		if _, err := tx.ExecContext(ctx, deleteQuery, name); err != nil {
			return nil, err
		}
		quantity = 0
	} else {
		updateQuery := `
			UPDATE inventory_items
			SET quantity = quantity - 1, updated_at = CURRENT_TIMESTAMP
			WHERE name = $1
			RETURNING quantity
		`
		if err := tx.GetContext(ctx, &quantity, updateQuery, name); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.InventoryItem{Name: name, Quantity: quantity}, nil
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domain.InventoryItem, error) {
	query := `SELECT name, quantity FROM inventory_items ORDER BY name COLLATE "C" ASC`

	var items []*domain.InventoryItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}

	return items, nil
}
