// Package store is the key-addressable, subscribable, transactionally-updatable
// document store shared by every manifest client. Values are JSON documents;
// every record carries a version used for compare-and-swap writes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("store: key not found")
	// ErrVersionConflict is returned by CompareAndSwap when the record moved on.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrRetriesExhausted is returned by Transact after the bounded retry loop lost every race.
	ErrRetriesExhausted = errors.New("store: transaction retries exhausted")
)

// Record is a versioned document. Version 0 means the key does not exist.
type Record struct {
	Key     string `json:"key" db:"key"`
	Version int64  `json:"version" db:"version"`
	Value   []byte `json:"value" db:"value"`
}

// EventType distinguishes writes from deletions.
type EventType string

const (
	EventPut    EventType = "put"
	EventDelete EventType = "delete"
)

// Event is pushed to subscribers after every committed write.
type Event struct {
	Type    EventType `json:"type"`
	Key     string    `json:"key"`
	Version int64     `json:"version"`
	Value   []byte    `json:"value,omitempty"`
}

// Store is the primitive surface consumed by the manifest engine.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	List(ctx context.Context, prefix string) ([]Record, error)
	Set(ctx context.Context, key string, value []byte) (int64, error)
	Delete(ctx context.Context, key string) error
	// CompareAndSwap writes value only when the current version equals expected.
	// expected == 0 requires the key to be absent; a nil value deletes the key.
	CompareAndSwap(ctx context.Context, key string, expected int64, value []byte) (int64, error)
	Subscribe(prefix string, fn func(Event)) (unsubscribe func())
}

// Key joins a collection and an id into a store key.
func Key(collection, id string) string {
	return collection + "/" + id
}

// SplitKey returns the collection and id parts of a key.
func SplitKey(key string) (collection, id string) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

// Mutator receives the current value (nil when absent) and returns the next one.
// Returning a nil value deletes the key; returning an error aborts the transaction.
type Mutator func(current []byte) ([]byte, error)

// Transactor runs compare-and-swap transactions with bounded retry.
type Transactor struct {
	Store      Store
	MaxRetries int
	// OnConflict is invoked for every lost race, before retrying.
	OnConflict func(key string, attempt int)
}

// NewTransactor builds a transactor; maxRetries <= 0 falls back to 5.
func NewTransactor(s Store, maxRetries int) *Transactor {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Transactor{Store: s, MaxRetries: maxRetries}
}

// Transact reads the freshest record, applies fn and writes back conditionally,
// retrying with the latest record whenever another writer won the race.
func (t *Transactor) Transact(ctx context.Context, key string, fn Mutator) (Record, error) {
	for attempt := 0; attempt <= t.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		current, err := t.Store.Get(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Record{}, err
		}
		var value []byte
		if err == nil {
			value = current.Value
		}
		next, err := fn(value)
		if err != nil {
			return Record{}, err
		}
		if next == nil && current.Version == 0 {
			return Record{Key: key}, nil
		}
		version, err := t.Store.CompareAndSwap(ctx, key, current.Version, next)
		if errors.Is(err, ErrVersionConflict) {
			if t.OnConflict != nil {
				t.OnConflict(key, attempt+1)
			}
			continue
		}
		if err != nil {
			return Record{}, err
		}
		return Record{Key: key, Version: version, Value: next}, nil
	}
	return Record{}, fmt.Errorf("%w: %s after %d attempts", ErrRetriesExhausted, key, t.MaxRetries+1)
}

// Transact runs a single bounded-retry transaction without keeping a Transactor around.
func Transact(ctx context.Context, s Store, key string, maxRetries int, fn Mutator) (Record, error) {
	return NewTransactor(s, maxRetries).Transact(ctx, key, fn)
}

// Update merges top-level JSON fields of partial into the document at key.
func (t *Transactor) Update(ctx context.Context, key string, partial map[string]interface{}) (Record, error) {
	return t.Transact(ctx, key, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		doc := map[string]json.RawMessage{}
		if err := json.Unmarshal(current, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		for field, value := range partial {
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("encode %s.%s: %w", key, field, err)
			}
			doc[field] = raw
		}
		return json.Marshal(doc)
	})
}
