package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	statuses := []models.LoadStatus{models.LoadStatusBuilding, models.LoadStatusReady, models.LoadStatusDeparted, models.LoadStatusCompleted}
	for i, from := range statuses {
		for j, to := range statuses {
			assert.Equal(t, j == i+1, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	err := ValidateTransition(models.LoadStatusBuilding, models.LoadStatusDeparted)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
	err = ValidateTransition(models.LoadStatusBuilding, "boarding")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestPlanTransitionStampsOnlyTheAnchor(t *testing.T) {
	now := baseTime.Add(time.Minute)
	a := load("a", models.LoadStatusBuilding, 1)
	b := load("b", models.LoadStatusBuilding, 2)

	changes, err := PlanTransition(a, models.LoadStatusReady, []models.Load{a, b}, now)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].After.CountdownStartTime)
	assert.Equal(t, now, *changes[0].After.CountdownStartTime)
	assert.Nil(t, changes[0].Before.CountdownStartTime)

	readyA := a
	ApplyState(&readyA, changes[0].After)
	changes, err = PlanTransition(b, models.LoadStatusReady, []models.Load{readyA, b}, now)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].After.CountdownStartTime, "b waits behind the anchor")
}

func TestPlanTransitionDepartureCascades(t *testing.T) {
	start := baseTime
	a := load("a", models.LoadStatusReady, 1)
	a.CountdownStartTime = timePtr(start)
	b := load("b", models.LoadStatusReady, 2)
	departedAt := start.Add(20 * time.Minute)

	changes, err := PlanTransition(a, models.LoadStatusDeparted, []models.Load{a, b}, departedAt)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, models.LoadStatusDeparted, changes[0].After.Status)
	assert.Equal(t, departedAt, *changes[0].After.DepartedAt)
	assert.Equal(t, start, *changes[0].After.CountdownStartTime, "timer retained for audit")

	assert.Equal(t, "b", changes[1].LoadID)
	assert.Equal(t, models.LoadStatusReady, changes[1].After.Status)
	assert.Equal(t, departedAt, *changes[1].After.CountdownStartTime)

	changes, err = PlanTransition(a, models.LoadStatusDeparted, []models.Load{a}, departedAt)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestPlanTransitionReadyBehindBuildingLoadWaits(t *testing.T) {
	a := load("a", models.LoadStatusBuilding, 1)
	b := load("b", models.LoadStatusBuilding, 2)
	readyAt := baseTime

	changes, err := PlanTransition(b, models.LoadStatusReady, []models.Load{a, b}, readyAt)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].After.CountdownStartTime, "load #1 is still building")

	readyB := b
	ApplyState(&readyB, changes[0].After)
	changes, err = PlanTransition(a, models.LoadStatusReady, []models.Load{a, readyB}, readyAt.Add(45*time.Minute))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].After.CountdownStartTime)

	readyA := a
	ApplyState(&readyA, changes[0].After)
	departedAt := readyAt.Add(46 * time.Minute)
	changes, err = PlanTransition(readyA, models.LoadStatusDeparted, []models.Load{readyA, readyB}, departedAt)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "b", changes[1].LoadID)
	assert.Equal(t, departedAt, *changes[1].After.CountdownStartTime)
}

func TestCascadeStamp(t *testing.T) {
	building := load("a", models.LoadStatusBuilding, 1)
	ready := load("b", models.LoadStatusReady, 2)
	gone := load("x", models.LoadStatusDeparted, 3)

	_, ok := CascadeStamp([]models.Load{building, ready, gone}, baseTime)
	assert.False(t, ok, "blocked by a building load")

	change, ok := CascadeStamp([]models.Load{ready, gone}, baseTime)
	require.True(t, ok)
	assert.Equal(t, "b", change.LoadID)
	assert.Nil(t, change.Before.CountdownStartTime)
	assert.Equal(t, baseTime, *change.After.CountdownStartTime)

	ready.CountdownStartTime = timePtr(baseTime)
	_, ok = CascadeStamp([]models.Load{ready}, baseTime.Add(time.Minute))
	assert.False(t, ok, "already counting")

	_, ok = CascadeStamp([]models.Load{building, gone}, baseTime)
	assert.False(t, ok, "nothing ready")
}

func TestPlanTransitionCompleteStampsCompletedAt(t *testing.T) {
	a := load("a", models.LoadStatusDeparted, 1)
	changes, err := PlanTransition(a, models.LoadStatusCompleted, []models.Load{a}, baseTime)
	require.NoError(t, err)
	require.NotNil(t, changes[0].After.CompletedAt)

	_, err = PlanTransition(a, models.LoadStatusReady, []models.Load{a}, baseTime)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
}
