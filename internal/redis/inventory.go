package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"pantry/internal/domain"
)

const DefaultInventoryKey = "pantry:inventory"

// Returns the new quantity, 0 when the field was removed, or -1 when it
// did not exist.
var decrementOrDeleteScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]

local current = redis.call('HGET', key, field)
if not current then
	return -1
end

current = tonumber(current)
if current <= 1 then
	redis.call('HDEL', key, field)
	return 0
end

return redis.call('HINCRBY', key, field, -1)
`)

// InventoryStore keeps the whole inventory in one hash, field = item name,
// value = quantity. Every mutation is a single atomic command or script.
type InventoryStore struct {
	client *redis.Client
	key    string
}

func NewInventoryStore(client *redis.Client, key string) *InventoryStore {
	if key == "" {
		key = DefaultInventoryKey
	}
	return &InventoryStore{client: client, key: key}
}

func (s *InventoryStore) Get(ctx context.Context, name string) (*domain.InventoryItem, error) {
	qty, err := s.client.HGet(ctx, s.key, name).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return &domain.InventoryItem{Name: name, Quantity: qty}, nil
}

func (s *InventoryStore) UpsertAdd(ctx context.Context, name string, delta int) (*domain.InventoryItem, error) {
	if err := domain.ValidateDelta(delta); err != nil {
		return nil, err
	}
	qty, err := s.client.HIncrBy(ctx, s.key, name, int64(delta)).Result()
	if err != nil {
		return nil, err
	}
	return &domain.InventoryItem{Name: name, Quantity: int(qty)}, nil
}

func (s *InventoryStore) DecrementOrDelete(ctx context.Context, name string) (*domain.InventoryItem, error) {
	qty, err := decrementOrDeleteScript.Run(ctx, s.client, []string{s.key}, name).Int()
	if err != nil {
		return nil, err
	}
	if qty < 0 {
		return nil, domain.ErrItemNotFound
	}
	return &domain.InventoryItem{Name: name, Quantity: qty}, nil
}

func (s *InventoryStore) List(ctx context.Context) ([]*domain.InventoryItem, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	items := make([]*domain.InventoryItem, 0, len(fields))
	for name, value := range fields {
		qty, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		items = append(items, &domain.InventoryItem{Name: name, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}
