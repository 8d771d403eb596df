package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pantry/internal/domain"
)

const DefaultFirestoreCollection = "inventory"

// FirestoreInventoryRepository stores one document per item: document ID is
// the item name, body is {quantity: int}.
type FirestoreInventoryRepository struct {
	Client     *firestore.Client
	collection string
}

func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, errors.New("firestore: project id is empty")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return firestore.NewClient(ctx, projectID, opts...)
}

func NewFirestoreInventoryRepository(client *firestore.Client, collection string) *FirestoreInventoryRepository {
	if collection == "" {
		collection = DefaultFirestoreCollection
	}
	return &FirestoreInventoryRepository{Client: client, collection: collection}
}

type firestoreItem struct {
	Quantity int64 `firestore:"quantity"`
}

func (r *FirestoreInventoryRepository) col() *firestore.CollectionRef {
	return r.Client.Collection(r.collection)
}

func (r *FirestoreInventoryRepository) Get(ctx context.Context, name string) (*domain.InventoryItem, error) {
	snap, err := r.col().Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return docToItem(snap)
}

func (r *FirestoreInventoryRepository) UpsertAdd(ctx context.Context, name string, delta int) (*domain.InventoryItem, error) {
	if err := domain.ValidateDelta(delta); err != nil {
		return nil, err
	}

	ref := r.col().Doc(name)
	var item *domain.InventoryItem
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current := int64(0)
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var doc firestoreItem
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			current = doc.Quantity
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}

		next := current + int64(delta)
		item = &domain.InventoryItem{Name: name, Quantity: int(next)}
		return tx.Set(ref, map[string]interface{}{
			"quantity": firestore.Increment(delta),
		}, firestore.MergeAll)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *FirestoreInventoryRepository) DecrementOrDelete(ctx context.Context, name string) (*domain.InventoryItem, error) {
	ref := r.col().Doc(name)
	var item *domain.InventoryItem
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrItemNotFound
			}
			return err
		}

		var doc firestoreItem
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		if doc.Quantity <= 1 {
			item = &domain.InventoryItem{Name: name, Quantity: 0}
			return tx.Delete(ref)
		}

		item = &domain.InventoryItem{Name: name, Quantity: int(doc.Quantity - 1)}
		return tx.Update(ref, []firestore.Update{
			{Path: "quantity", Value: firestore.Increment(-1)},
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *FirestoreInventoryRepository) List(ctx context.Context) ([]*domain.InventoryItem, error) {
	iter := r.col().Documents(ctx)
	defer iter.Stop()

	var items []*domain.InventoryItem
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		item, err := docToItem(snap)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func docToItem(snap *firestore.DocumentSnapshot) (*domain.InventoryItem, error) {
	var doc firestoreItem
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode inventory document %q: %w", snap.Ref.ID, err)
	}
	return &domain.InventoryItem{Name: snap.Ref.ID, Quantity: int(doc.Quantity)}, nil
}
