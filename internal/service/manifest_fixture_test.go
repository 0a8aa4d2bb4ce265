package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/repository"
	"github.com/noah-isme/dz-manifest-api/internal/store"
)

var fixtureStart = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type manifestFixture struct {
	store       *store.MemoryStore
	loads       *repository.LoadRepository
	queue       *repository.QueueRepository
	instructors *repository.InstructorRepository
	groups      *repository.GroupRepository
	periods     *repository.PeriodRepository
	settings    *SettingsService
	svc         *ManifestService
	history     *HistoryService
	clock       *testClock
}

func newManifestFixture(t *testing.T) *manifestFixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryStore()
	tx := store.NewTransactor(mem, 5)
	clock := &testClock{t: fixtureStart}

	f := &manifestFixture{
		store:       mem,
		loads:       repository.NewLoadRepository(mem, tx),
		queue:       repository.NewQueueRepository(mem, tx),
		instructors: repository.NewInstructorRepository(mem, tx),
		groups:      repository.NewGroupRepository(mem, tx),
		periods:     repository.NewPeriodRepository(mem, tx),
		clock:       clock,
	}
	f.settings = NewSettingsService(repository.NewSettingsRepository(mem, tx), models.ManifestSettings{
		MinutesBetweenLoads:  20,
		InstructorCycleTime:  40,
		DefaultPlaneCapacity: 18,
	}, nil, nil)
	f.svc = NewManifestService(f.loads, f.queue, f.instructors, f.groups, f.settings, nil, nil, WithManifestClock(clock.Now))
	f.history = NewHistoryService(f.svc, nil, WithHistoryClock(clock.Now))

	roster := []models.Instructor{
		{ID: "ana", Name: "Ana", ClockedIn: true, CanTandem: true, CanAFF: true, CanVideo: true, TandemWeightLimit: 240},
		{ID: "ben", Name: "Ben", ClockedIn: true, CanTandem: true, TandemWeightLimit: 200},
		{ID: "cat", Name: "Cat", ClockedIn: true, CanTandem: true, CanVideo: true},
		{ID: "dan", Name: "Dan", CanTandem: true},
		{ID: "eve", Name: "Eve", ClockedIn: true, CanTandem: true, TandemWeightLimit: 250},
	}
	for _, inst := range roster {
		require.NoError(t, f.instructors.Put(ctx, inst))
	}

	entries := []models.QueueEntry{
		{ID: "q1", StudentID: "stu-1", StudentName: "Avery", StudentWeight: 180, JumpType: models.JumpTypeTandem},
		{ID: "q2", StudentID: "stu-2", StudentName: "Blake", StudentWeight: 230, JumpType: models.JumpTypeTandem},
		{ID: "q3", StudentID: "stu-3", StudentName: "Casey", StudentWeight: 150, JumpType: models.JumpTypeAFF, AFFLevel: 1},
		{ID: "q4", StudentID: "stu-4", StudentName: "Drew", StudentWeight: 170, JumpType: models.JumpTypeTandem, HasOutsideVideo: true},
		{ID: "q5", StudentID: "stu-5", StudentName: "Emery", StudentWeight: 160, JumpType: models.JumpTypeTandem, GroupID: "g1"},
		{ID: "q6", StudentID: "stu-6", StudentName: "Finley", StudentWeight: 165, JumpType: models.JumpTypeTandem, GroupID: "g1"},
	}
	for i, entry := range entries {
		entry.QueueTimestamp = fixtureStart.Add(-time.Duration(len(entries)-i) * time.Minute)
		require.NoError(t, f.queue.Put(ctx, entry))
	}
	require.NoError(t, f.groups.Put(ctx, models.Group{ID: "g1", Name: "Bachelor party", StudentIDs: []string{"stu-5", "stu-6"}}))
	return f
}

// dump returns every record in the store keyed by store key.
func (f *manifestFixture) dump(t *testing.T) map[string]string {
	t.Helper()
	recs, err := f.store.List(context.Background(), "")
	require.NoError(t, err)
	out := make(map[string]string, len(recs))
	for _, rec := range recs {
		out[rec.Key] = string(rec.Value)
	}
	return out
}

func (f *manifestFixture) createLoad(t *testing.T, capacity int) *models.Load {
	t.Helper()
	res, cmd, err := f.svc.CreateLoad(context.Background(), dto.CreateLoadRequest{Capacity: capacity})
	require.NoError(t, err)
	f.history.Record(context.Background(), cmd, "ops")
	return res.Load
}

func (f *manifestFixture) assign(t *testing.T, loadID, queueEntryID, instructorID, videoID string) *dto.ManifestResult {
	t.Helper()
	res, cmd, err := f.svc.AssignToLoad(context.Background(), loadID, dto.AssignRequest{
		QueueEntryID:      queueEntryID,
		InstructorID:      instructorID,
		VideoInstructorID: videoID,
	})
	require.NoError(t, err)
	f.history.Record(context.Background(), cmd, "ops")
	return res
}

func (f *manifestFixture) transition(t *testing.T, loadID string, status models.LoadStatus) *dto.ManifestResult {
	t.Helper()
	res, cmd, err := f.svc.Transition(context.Background(), loadID, dto.TransitionRequest{Status: status})
	require.NoError(t, err)
	f.history.Record(context.Background(), cmd, "ops")
	return res
}

func (f *manifestFixture) load(t *testing.T, id string) models.Load {
	t.Helper()
	l, err := f.loads.Get(context.Background(), id)
	require.NoError(t, err)
	return *l
}

func (f *manifestFixture) queued(t *testing.T) []string {
	t.Helper()
	entries, err := f.queue.List(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func boolPtr(v bool) *bool { return &v }

func stringPtr(v string) *string { return &v }
