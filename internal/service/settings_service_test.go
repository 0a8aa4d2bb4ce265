package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/repository"
	"github.com/noah-isme/dz-manifest-api/internal/store"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

func TestSettingsUpdateTakesEffectWithoutRestart(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	audit := &auditRecorder{}
	mem := f.store
	settings := NewSettingsService(repository.NewSettingsRepository(mem, store.NewTransactor(mem, 3)), models.ManifestSettings{
		MinutesBetweenLoads:  20,
		InstructorCycleTime:  40,
		DefaultPlaneCapacity: 18,
	}, nil, nil, WithSettingsAudit(audit), WithSettingsClock(f.clock.Now))

	current, err := settings.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, current.MinutesBetweenLoads)

	a := f.createLoad(t, 0)
	b := f.createLoad(t, 0)
	f.assign(t, a.ID, "q1", "ana", "")
	_, _, err = f.svc.AssignToLoad(ctx, b.ID, dto.AssignRequest{QueueEntryID: "q2", InstructorID: "ana"})
	require.Error(t, err)

	updated, err := settings.Update(ctx, dto.UpdateSettingsRequest{
		MinutesBetweenLoads:  20,
		InstructorCycleTime:  20,
		DefaultPlaneCapacity: 22,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", updated.UpdatedBy)
	assert.Equal(t, fixtureStart, updated.UpdatedAt)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSettings, audit.logs[0].Action)

	// The manifest service reads the same record on its next call.
	_, _, err = f.svc.AssignToLoad(ctx, b.ID, dto.AssignRequest{QueueEntryID: "q2", InstructorID: "ana"})
	require.NoError(t, err)
	c := f.createLoad(t, 0)
	assert.Equal(t, 22, c.Capacity)
}

func TestSettingsUpdateValidation(t *testing.T) {
	f := newManifestFixture(t)
	_, err := f.settings.Update(context.Background(), dto.UpdateSettingsRequest{
		MinutesBetweenLoads:  0,
		InstructorCycleTime:  30,
		DefaultPlaneCapacity: 18,
	}, "admin-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestBoardSnapshotAndSubscribe(t *testing.T) {
	f := newManifestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	board := NewBoardService(f.loads, f.settings, f.store, []string{store.Key(repository.CollectionLoads, "")}, nil,
		WithBoardClock(f.clock.Now), WithBoardInterval(time.Hour))

	a := f.createLoad(t, 4)
	f.assign(t, a.ID, "q1", "ana", "")

	snap, err := board.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Loads, 1)
	assert.Equal(t, 2, snap.Loads[0].SeatsUsed)
	assert.Equal(t, 2, snap.Loads[0].SeatsAvailable)
	assert.Equal(t, "building", snap.Loads[0].Countdown.Label)

	updates, unsubscribe := board.Subscribe()
	defer unsubscribe()
	go board.Run(ctx)

	first := <-updates
	require.Len(t, first.Loads, 1)

	f.transition(t, a.ID, models.LoadStatusReady)
	require.Eventually(t, func() bool {
		select {
		case snap := <-updates:
			return snap.Loads[0].Countdown.Label == "20:00"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
