package repository

import (
	"context"
	"sort"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/store"
)

// PeriodRepository persists accounting periods under periods/{id}.
type PeriodRepository struct {
	docs documents[models.Period]
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(s store.Store, tx *store.Transactor) *PeriodRepository {
	return &PeriodRepository{docs: newDocuments[models.Period](s, tx, CollectionPeriods, "period")}
}

// Get fetches one period.
func (r *PeriodRepository) Get(ctx context.Context, id string) (*models.Period, error) {
	period, _, err := r.docs.get(ctx, id)
	return period, err
}

// List returns periods newest first.
func (r *PeriodRepository) List(ctx context.Context) ([]models.Period, error) {
	periods, err := r.docs.list(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].Start.After(periods[j].Start) })
	return periods, nil
}

// Put upserts a period.
func (r *PeriodRepository) Put(ctx context.Context, period models.Period) error {
	return r.docs.put(ctx, period.ID, period)
}

// Transact mutates the latest version of the period.
func (r *PeriodRepository) Transact(ctx context.Context, id string, fn func(period *models.Period) error) (*models.Period, error) {
	return r.docs.transact(ctx, id, fn)
}
