package repository

import (
	"context"

	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/store"
)

// LoadRepository persists loads under loads/{id}.
type LoadRepository struct {
	docs documents[models.Load]
}

// NewLoadRepository constructs the repository.
func NewLoadRepository(s store.Store, tx *store.Transactor) *LoadRepository {
	return &LoadRepository{docs: newDocuments[models.Load](s, tx, CollectionLoads, "load")}
}

// Get returns the load together with its store version.
func (r *LoadRepository) Get(ctx context.Context, id string) (*models.Load, error) {
	load, _, err := r.docs.get(ctx, id)
	if err != nil {
		return nil, err
	}
	normalize(load)
	return load, nil
}

// List returns every load ordered by position.
func (r *LoadRepository) List(ctx context.Context) ([]models.Load, error) {
	loads, err := r.docs.list(ctx)
	if err != nil {
		return nil, err
	}
	for i := range loads {
		normalize(&loads[i])
	}
	engine.SortByPosition(loads)
	return loads, nil
}

// Create inserts a new load.
func (r *LoadRepository) Create(ctx context.Context, load models.Load) error {
	normalize(&load)
	return r.docs.create(ctx, load.ID, load)
}

// Transact applies fn to the latest version of the load under compare-and-swap.
func (r *LoadRepository) Transact(ctx context.Context, id string, fn func(load *models.Load) error) (*models.Load, error) {
	return r.docs.transact(ctx, id, func(load *models.Load) error {
		normalize(load)
		if err := fn(load); err != nil {
			return err
		}
		normalize(load)
		return nil
	})
}

// DeleteIf removes the load once check accepts its latest version.
func (r *LoadRepository) DeleteIf(ctx context.Context, id string, check func(load models.Load) error) (*models.Load, error) {
	load, err := r.docs.removeIf(ctx, id, func(load models.Load) error {
		normalize(&load)
		return check(load)
	})
	if err != nil {
		return nil, err
	}
	normalize(load)
	return load, nil
}

// normalize keeps the encoded assignment list a JSON array.
func normalize(load *models.Load) {
	if load.Assignments == nil {
		load.Assignments = []models.LoadAssignment{}
	}
}
