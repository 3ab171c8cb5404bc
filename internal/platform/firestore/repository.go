package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document pairs a decoded entity with its ID and server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
	ReadTime   time.Time
}

// BaseRepository gives repositories typed access to one collection.
// Documents are decoded with Firestore's struct tags, errors come back
// wrapped as *Error.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
}

// NewBaseRepository binds a repository to the named collection.
func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{provider: provider, collection: strings.TrimSpace(collection)}
}

// Set upserts value under id and returns the server update time.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T) (time.Time, error) {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	result, err := ref.Set(ctx, value)
	if err != nil {
		return time.Time{}, WrapError(r.op("set"), err)
	}
	return result.UpdateTime, nil
}

// Get fetches and decodes the document with the given id.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.op("get"), err)
	}
	return r.decode(snap)
}

// Query runs a collection query shaped by build and decodes every match.
// A nil build returns the whole collection.
func (r *BaseRepository[T]) Query(ctx context.Context, build func(firestore.Query) firestore.Query) ([]Document[T], error) {
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	q := coll.Query
	if build != nil {
		q = build(q)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	var out []Document[T]
	for {
		snap, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				return out, nil
			}
			return nil, WrapError(r.op("query"), err)
		}
		doc, decodeErr := r.decode(snap)
		if decodeErr != nil {
			return nil, fmt.Errorf("firestore: decode document %s: %w", snap.Ref.ID, decodeErr)
		}
		out = append(out, doc)
	}
}

// DocumentRef returns the raw document reference, needed when repositories
// read or write inside transactions.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := r.collectionRef(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (r *BaseRepository[T]) decode(snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, err
	}
	return Document[T]{
		ID:         snap.Ref.ID,
		Data:       data,
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
		ReadTime:   snap.ReadTime,
	}, nil
}

func (r *BaseRepository[T]) collectionRef(ctx context.Context) (*firestore.CollectionRef, error) {
	switch {
	case r == nil || r.provider == nil:
		return nil, WrapError(r.op("collection"), errors.New("firestore: provider is nil"))
	case r.collection == "":
		return nil, WrapError(r.op("collection"), errors.New("firestore: collection name is required"))
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

// op names operations "collection.action" for error messages.
func (r *BaseRepository[T]) op(action string) string {
	if r == nil || r.collection == "" {
		return "firestore." + action
	}
	return r.collection + "." + action
}
