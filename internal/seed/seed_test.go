package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/repository"
	"github.com/noah-isme/dz-manifest-api/internal/store"
)

const fixtureYAML = `
settings:
  minutesBetweenLoads: 20
  instructorCycleTime: 40
  defaultPlaneCapacity: 18
instructors:
  - id: ana
    name: Ana
    clockedIn: true
    canTandem: true
    tandemWeightLimit: 240
  - id: eve
    name: Eve
    clockedIn: true
    canTandem: true
    canVideo: true
groups:
  - id: g1
    name: Birthday
    studentIds: [s5, s6]
queue:
  - id: q1
    studentId: s1
    studentName: Blake
    studentWeight: 180
    jumpType: tandem
    hasOutsideVideo: true
  - id: q5
    studentId: s5
    studentWeight: 150
    jumpType: tandem
    groupId: g1
    isRequest: true
    requestedInstructorId: eve
`

func TestParseAndApply(t *testing.T) {
	f, err := Parse([]byte(fixtureYAML))
	require.NoError(t, err)
	require.Len(t, f.Instructors, 2)
	assert.Equal(t, 240, f.Instructors[0].TandemWeightLimit)
	assert.True(t, f.Queue[0].HasOutsideVideo)

	mem := store.NewMemoryStore()
	tx := store.NewTransactor(mem, 3)
	queue := repository.NewQueueRepository(mem, tx)
	settings := repository.NewSettingsRepository(mem, tx)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	sum, err := Apply(context.Background(), f, Targets{
		Instructors: repository.NewInstructorRepository(mem, tx),
		Groups:      repository.NewGroupRepository(mem, tx),
		Queue:       queue,
		Settings:    settings,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, Summary{Instructors: 2, Groups: 1, Queue: 2, Settings: true}, sum)

	entry, err := queue.Get(context.Background(), "q5")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Second), entry.QueueTimestamp)
	assert.Equal(t, "g1", entry.GroupID)

	saved, ok, err := settings.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "seed", saved.UpdatedBy)
}

func TestParseRejectsBrokenReferences(t *testing.T) {
	cases := map[string]string{
		"unknown instructor": "queue:\n  - {id: q1, studentId: s1, jumpType: tandem, requestedInstructorId: zed}\n",
		"unknown group":      "queue:\n  - {id: q1, studentId: s1, jumpType: aff, groupId: g9}\n",
		"bad jump type":      "queue:\n  - {id: q1, studentId: s1, jumpType: wingsuit}\n",
		"duplicate":          "instructors:\n  - {id: ana}\n  - {id: ana}\n",
		"bad settings":       "settings: {minutesBetweenLoads: 0, instructorCycleTime: 40, defaultPlaneCapacity: 18}\n",
		"not yaml":           "queue: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSampleFixtureLoads(t *testing.T) {
	f, err := LoadFile("../../fixtures/dropzone.yaml")
	require.NoError(t, err)
	assert.Len(t, f.Instructors, 4)
	assert.Len(t, f.Queue, 4)
	require.NotNil(t, f.Settings)
	assert.Equal(t, 20, f.Settings.MinutesBetweenLoads)
}
