package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/store"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

func TestLoadRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewLoadRepository(s, store.NewTransactor(s, 3))

	require.NoError(t, repo.Create(ctx, models.Load{ID: "b", Status: models.LoadStatusBuilding, Position: 2, Capacity: 18}))
	require.NoError(t, repo.Create(ctx, models.Load{ID: "a", Status: models.LoadStatusBuilding, Position: 1, Capacity: 18}))

	err := repo.Create(ctx, models.Load{ID: "a"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	rec, err := s.Get(ctx, "loads/a")
	require.NoError(t, err)
	assert.Contains(t, string(rec.Value), `"assignments":[]`)

	loads, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, "a", loads[0].ID)
	assert.NotNil(t, loads[0].Assignments)
}

func TestLoadRepositoryTransact(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewLoadRepository(s, store.NewTransactor(s, 3))
	require.NoError(t, repo.Create(ctx, models.Load{ID: "a", Status: models.LoadStatusBuilding, Position: 1, Capacity: 18}))

	placed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	updated, err := repo.Transact(ctx, "a", func(load *models.Load) error {
		load.Assignments = append(load.Assignments, models.LoadAssignment{ID: "q1", JumpType: models.JumpTypeTandem, PlacedAt: placed})
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.Assignments, 1)

	_, err = repo.Transact(ctx, "missing", func(load *models.Load) error { return nil })
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	abort := appErrors.Clone(appErrors.ErrCapacityExceeded, "full")
	_, err = repo.Transact(ctx, "a", func(load *models.Load) error { return abort })
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got.Assignments, 1)
}

func TestLoadRepositoryStaleWriteSurfacesAsConflict(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewLoadRepository(s, store.NewTransactor(s, 1))
	require.NoError(t, repo.Create(ctx, models.Load{ID: "a", Capacity: 18}))

	_, err := repo.Transact(ctx, "a", func(load *models.Load) error {
		_, setErr := s.Set(ctx, "loads/a", []byte(`{"id":"a","capacity":18,"assignments":[]}`))
		return setErr
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStaleWriteConflict.Code))
}

func TestLoadRepositoryDeleteIf(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewLoadRepository(s, nil)
	require.NoError(t, repo.Create(ctx, models.Load{ID: "a", Status: models.LoadStatusCompleted}))

	refuse := appErrors.Clone(appErrors.ErrPreconditionFailed, "confirm required")
	_, err := repo.DeleteIf(ctx, "a", func(load models.Load) error { return refuse })
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	deleted, err := repo.DeleteIf(ctx, "a", func(load models.Load) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, models.LoadStatusCompleted, deleted.Status)

	_, err = repo.Get(ctx, "a")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestQueueRepositoryOrdersFIFO(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	repo := NewQueueRepository(s, nil)
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Put(ctx, models.QueueEntry{ID: "z", QueueTimestamp: base}))
	require.NoError(t, repo.Put(ctx, models.QueueEntry{ID: "y", QueueTimestamp: base.Add(time.Minute)}))
	require.NoError(t, repo.Put(ctx, models.QueueEntry{ID: "a", QueueTimestamp: base.Add(time.Minute)}))

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	ids := []string{entries[0].ID, entries[1].ID, entries[2].ID}
	assert.Equal(t, []string{"z", "a", "y"}, ids)

	require.NoError(t, repo.Remove(ctx, "z"))
	assert.True(t, appErrors.HasCode(repo.Remove(ctx, "z"), appErrors.ErrNotFound.Code))
}

func TestSettingsRepositoryMissingIsNotAnError(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(store.NewMemoryStore(), nil)
	_, ok, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Save(ctx, models.ManifestSettings{MinutesBetweenLoads: 15}))
	got, ok, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 15, got.MinutesBetweenLoads)
}
