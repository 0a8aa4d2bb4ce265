package repository

import (
	"context"
	"sort"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/store"
)

// QueueRepository persists waiting students under queue/{id}.
type QueueRepository struct {
	docs documents[models.QueueEntry]
}

// NewQueueRepository constructs the repository.
func NewQueueRepository(s store.Store, tx *store.Transactor) *QueueRepository {
	return &QueueRepository{docs: newDocuments[models.QueueEntry](s, tx, CollectionQueue, "queue entry")}
}

// Get fetches one entry.
func (r *QueueRepository) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	entry, _, err := r.docs.get(ctx, id)
	return entry, err
}

// List returns the queue in FIFO order.
func (r *QueueRepository) List(ctx context.Context) ([]models.QueueEntry, error) {
	entries, err := r.docs.list(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].QueueTimestamp.Equal(entries[j].QueueTimestamp) {
			return entries[i].QueueTimestamp.Before(entries[j].QueueTimestamp)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Put writes the entry unconditionally. Returning a student is idempotent.
func (r *QueueRepository) Put(ctx context.Context, entry models.QueueEntry) error {
	return r.docs.put(ctx, entry.ID, entry)
}

// Remove deletes the entry.
func (r *QueueRepository) Remove(ctx context.Context, id string) error {
	return r.docs.remove(ctx, id)
}
