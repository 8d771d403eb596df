// Package app opens the storage backends selected by configuration.
package app

import (
	"context"
	"fmt"

	"pantry/internal/api/services"
	"pantry/internal/blob"
	"pantry/internal/config"
	inventoryredis "pantry/internal/redis"
	"pantry/internal/repository"
)

type CloseFunc func() error

// OpenInventoryStore connects to the configured inventory backend. The
// returned close func releases its client.
func OpenInventoryStore(ctx context.Context, cfg *config.Config) (services.InventoryStore, CloseFunc, error) {
	switch cfg.InventoryBackend {
	case config.InventoryBackendRedis:
		rdb := inventoryredis.New(cfg)
		if err := inventoryredis.Ping(ctx, rdb); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return inventoryredis.NewInventoryStore(rdb, inventoryredis.DefaultInventoryKey), rdb.Close, nil

	case config.InventoryBackendPostgres:
		db, err := repository.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return repository.NewInventoryRepository(db), db.Close, nil

	case config.InventoryBackendFirestore:
		client, err := repository.NewFirestoreClient(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to firestore: %w", err)
		}
		return repository.NewFirestoreInventoryRepository(client, cfg.Firestore.Collection), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown inventory backend %q", cfg.InventoryBackend)
	}
}

// BlobBackend is an opened blob store. LocalDir is set for the filesystem
// backend, whose files the HTTP server serves itself.
type BlobBackend struct {
	Store    blob.Store
	LocalDir string
	Close    CloseFunc
}

func OpenBlobStore(ctx context.Context, cfg *config.Config) (*BlobBackend, error) {
	switch cfg.Blob.Backend {
	case config.BlobBackendLocal:
		store, err := blob.NewLocalStore(cfg.Blob.Dir, cfg.Blob.Prefix, cfg.Blob.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return &BlobBackend{
			Store:    store,
			LocalDir: store.Dir(),
			Close:    func() error { return nil },
		}, nil

	case config.BlobBackendGCS:
		client, err := blob.NewGCSClient(ctx, cfg.Blob.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("connect to cloud storage: %w", err)
		}
		store, err := blob.NewGCSStore(client, cfg.Blob.GCSBucket, cfg.Blob.Prefix, cfg.Blob.GCSPublicBaseURL)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &BlobBackend{Store: store, Close: client.Close}, nil

	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}
