package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/dz-manifest-api/internal/store"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

// Collections of the shared store.
const (
	CollectionLoads       = "loads"
	CollectionQueue       = "queue"
	CollectionInstructors = "instructors"
	CollectionPeriods     = "periods"
	CollectionGroups      = "groups"
	CollectionSettings    = "settings"
)

// documents is a typed view over one collection of JSON documents.
type documents[T any] struct {
	store      store.Store
	tx         *store.Transactor
	collection string
	noun       string
}

func newDocuments[T any](s store.Store, tx *store.Transactor, collection, noun string) documents[T] {
	if tx == nil {
		tx = store.NewTransactor(s, 0)
	}
	return documents[T]{store: s, tx: tx, collection: collection, noun: noun}
}

func (d documents[T]) key(id string) string {
	return store.Key(d.collection, id)
}

func (d documents[T]) get(ctx context.Context, id string) (*T, int64, error) {
	rec, err := d.store.Get(ctx, d.key(id))
	if err != nil {
		return nil, 0, d.mapError(id, err)
	}
	var out T
	if err := json.Unmarshal(rec.Value, &out); err != nil {
		return nil, 0, fmt.Errorf("decode %s %s: %w", d.noun, id, err)
	}
	return &out, rec.Version, nil
}

func (d documents[T]) list(ctx context.Context) ([]T, error) {
	recs, err := d.store.List(ctx, d.collection+"/")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.collection, err)
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var item T
		if err := json.Unmarshal(rec.Value, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.Key, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (d documents[T]) put(ctx context.Context, id string, item T) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", d.noun, id, err)
	}
	if _, err := d.store.Set(ctx, d.key(id), raw); err != nil {
		return fmt.Errorf("save %s %s: %w", d.noun, id, err)
	}
	return nil
}

// create fails with a conflict when the id is already taken.
func (d documents[T]) create(ctx context.Context, id string, item T) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", d.noun, id, err)
	}
	if _, err := d.store.CompareAndSwap(ctx, d.key(id), 0, raw); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return appErrors.Clonef(appErrors.ErrConflict, "%s %s already exists", d.noun, id)
		}
		return fmt.Errorf("create %s %s: %w", d.noun, id, err)
	}
	return nil
}

func (d documents[T]) remove(ctx context.Context, id string) error {
	if err := d.store.Delete(ctx, d.key(id)); err != nil {
		return d.mapError(id, err)
	}
	return nil
}

// transact decodes the latest document, lets fn mutate it and writes it back
// conditionally. fn is re-run on every retry against the fresh record.
func (d documents[T]) transact(ctx context.Context, id string, fn func(item *T) error) (*T, error) {
	var result T
	_, err := d.tx.Transact(ctx, d.key(id), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "%s %s not found", d.noun, id)
		}
		var item T
		if err := json.Unmarshal(current, &item); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", d.noun, id, err)
		}
		if err := fn(&item); err != nil {
			return nil, err
		}
		result = item
		return json.Marshal(item)
	})
	if err != nil {
		return nil, d.mapError(id, err)
	}
	return &result, nil
}

// removeIf deletes the document when check accepts the latest version.
func (d documents[T]) removeIf(ctx context.Context, id string, check func(item T) error) (*T, error) {
	var result T
	_, err := d.tx.Transact(ctx, d.key(id), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "%s %s not found", d.noun, id)
		}
		var item T
		if err := json.Unmarshal(current, &item); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", d.noun, id, err)
		}
		if err := check(item); err != nil {
			return nil, err
		}
		result = item
		return nil, nil
	})
	if err != nil {
		return nil, d.mapError(id, err)
	}
	return &result, nil
}

func (d documents[T]) mapError(id string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return appErrors.Clonef(appErrors.ErrNotFound, "%s %s not found", d.noun, id)
	case errors.Is(err, store.ErrRetriesExhausted):
		return appErrors.Wrap(err, appErrors.ErrStaleWriteConflict.Code, appErrors.ErrStaleWriteConflict.Status,
			fmt.Sprintf("%s %s changed concurrently, please retry", d.noun, id))
	}
	return err
}
