package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pantry/internal/domain"
	"pantry/internal/metrics"
)

var (
	ErrStageTimeout = errors.New("operation timed out")
	ErrMergeFailure = errors.New("inventory merge failed")
)

// InventoryStore is the durable item -> quantity collection. Implementations
// must make UpsertAdd and DecrementOrDelete atomic per item.
type InventoryStore interface {
	Get(ctx context.Context, name string) (*domain.InventoryItem, error)
	UpsertAdd(ctx context.Context, name string, delta int) (*domain.InventoryItem, error)
	DecrementOrDelete(ctx context.Context, name string) (*domain.InventoryItem, error)
	List(ctx context.Context) ([]*domain.InventoryItem, error)
}

// InventoryNotifier is told about every successful inventory mutation.
type InventoryNotifier interface {
	InventoryChanged(ctx context.Context, item *domain.InventoryItem) error
}

type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// InventoryFilter narrows List results. Search is a case-insensitive name
// substring, Quantity an exact match; zero values disable a filter.
type InventoryFilter struct {
	Search   string
	Quantity int
}

type InventoryService struct {
	store     InventoryStore
	timeout   time.Duration
	logger    Logger
	notifiers []InventoryNotifier
}

func NewInventoryService(store InventoryStore, timeout time.Duration, logger Logger, notifiers ...InventoryNotifier) *InventoryService {
	return &InventoryService{
		store:     store,
		timeout:   timeout,
		logger:    logger,
		notifiers: notifiers,
	}
}

func (s *InventoryService) Get(ctx context.Context, name string) (*domain.InventoryItem, error) {
	if err := domain.ValidateItemName(name); err != nil {
		return nil, err
	}
	return withTimeout(ctx, s.timeout, func(ctx context.Context) (*domain.InventoryItem, error) {
		return s.store.Get(ctx, name)
	})
}

func (s *InventoryService) Add(ctx context.Context, name string, quantity int) (*domain.InventoryItem, error) {
	if err := domain.ValidateItemName(name); err != nil {
		return nil, err
	}
	if err := domain.ValidateDelta(quantity); err != nil {
		return nil, err
	}

	item, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (*domain.InventoryItem, error) {
		return s.store.UpsertAdd(ctx, name, quantity)
	})
	metrics.InventoryMutation("upsert_add", err)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, item)
	return item, nil
}

// Remove takes one unit of name out of the inventory, deleting the item when
// its last unit goes.
func (s *InventoryService) Remove(ctx context.Context, name string) (*domain.InventoryItem, error) {
	if err := domain.ValidateItemName(name); err != nil {
		return nil, err
	}

	item, err := withTimeout(ctx, s.timeout, func(ctx context.Context) (*domain.InventoryItem, error) {
		return s.store.DecrementOrDelete(ctx, name)
	})
	metrics.InventoryMutation("decrement_or_delete", err)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, item)
	return item, nil
}

func (s *InventoryService) List(ctx context.Context, filter InventoryFilter) ([]*domain.InventoryItem, error) {
	items, err := withTimeout(ctx, s.timeout, s.store.List)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search == "" && filter.Quantity == 0 {
		return items, nil
	}

	filtered := make([]*domain.InventoryItem, 0, len(items))
	for _, item := range items {
		if search != "" && !strings.Contains(strings.ToLower(item.Name), search) {
			continue
		}
		if filter.Quantity != 0 && item.Quantity != filter.Quantity {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered, nil
}

// Merge adds every entry of result to the inventory in name order. The whole
// result is validated before anything is written. A store failure stops the
// merge; items applied before it are returned alongside the error and are
// not rolled back.
func (s *InventoryService) Merge(ctx context.Context, result domain.IngestionResult) ([]*domain.InventoryItem, error) {
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", domain.ErrInvalidDelta)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	applied := make([]*domain.InventoryItem, 0, len(result))
	for _, name := range result.Names() {
		item, err := s.Add(ctx, name, result[name])
		if err != nil {
			return applied, fmt.Errorf("%w: %s: %w", ErrMergeFailure, name, err)
		}
		applied = append(applied, item)
	}
	return applied, nil
}

func (s *InventoryService) notify(ctx context.Context, item *domain.InventoryItem) {
	for _, n := range s.notifiers {
		if err := n.InventoryChanged(ctx, item); err != nil && s.logger != nil {
			s.logger.Errorf("[Inventory] notify %q: %v", item.Name, err)
		}
	}
}

// withTimeout runs fn under a deadline of d (none when d <= 0) and marks
// deadline failures with ErrStageTimeout.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	v, err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrStageTimeout) {
		err = fmt.Errorf("%w: %w", ErrStageTimeout, err)
	}
	return v, err
}
