package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

func TestManifestAssignRemovesFromQueue(t *testing.T) {
	f := newManifestFixture(t)
	a := f.createLoad(t, 0)
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 18, a.Capacity)

	res := f.assign(t, a.ID, "q1", "ana", "")
	require.Len(t, res.Load.Assignments, 1)
	placed := res.Load.Assignments[0]
	assert.Equal(t, "q1", placed.ID)
	assert.Equal(t, "ana", placed.InstructorID)
	assert.Equal(t, fixtureStart, placed.PlacedAt)
	assert.False(t, res.QueueCleanupPending)
	assert.NotContains(t, f.queued(t), "q1")

	_, _, err := f.svc.AssignToLoad(context.Background(), a.ID, dto.AssignRequest{QueueEntryID: "q1"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestManifestCapacityExceeded(t *testing.T) {
	f := newManifestFixture(t)
	a := f.createLoad(t, 4)
	f.assign(t, a.ID, "q4", "cat", "ana")

	_, _, err := f.svc.AssignToLoad(context.Background(), a.ID, dto.AssignRequest{QueueEntryID: "q1", InstructorID: "ben"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCapacityExceeded.Code))
	assert.Contains(t, err.Error(), "need 2 seats, 1 available on load #1")

	loaded := f.load(t, a.ID)
	assert.LessOrEqual(t, engine.SeatsUsed(loaded.Assignments), loaded.Capacity)
	assert.Contains(t, f.queued(t), "q1")
}

func TestManifestInstructorConflictOnSameLoad(t *testing.T) {
	f := newManifestFixture(t)
	a := f.createLoad(t, 0)
	f.assign(t, a.ID, "q1", "ana", "")

	_, _, err := f.svc.AssignToLoad(context.Background(), a.ID, dto.AssignRequest{QueueEntryID: "q2", InstructorID: "ana"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInstructorConflict.Code))

	_, _, err = f.svc.AssignToLoad(context.Background(), a.ID, dto.AssignRequest{QueueEntryID: "q4", InstructorID: "cat", VideoInstructorID: "cat"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInstructorConflict.Code))
}

func TestManifestQualificationMismatch(t *testing.T) {
	f := newManifestFixture(t)
	a := f.createLoad(t, 0)

	cases := []struct {
		name       string
		queueEntry string
		instructor string
		video      string
	}{
		{name: "over weight limit", queueEntry: "q2", instructor: "ben"},
		{name: "not clocked in", queueEntry: "q1", instructor: "dan"},
		{name: "not aff rated", queueEntry: "q3", instructor: "ben"},
		{name: "video without rating", queueEntry: "q4", instructor: "ana", video: "ben"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.AssignToLoad(context.Background(), a.ID, dto.AssignRequest{
				QueueEntryID:      tc.queueEntry,
				InstructorID:      tc.instructor,
				VideoInstructorID: tc.video,
			})
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrQualificationMismatch.Code), err.Error())
		})
	}
}

func TestManifestAvailabilityRespectsCycleTime(t *testing.T) {
	f := newManifestFixture(t)
	a := f.createLoad(t, 0)
	b := f.createLoad(t, 0)
	c := f.createLoad(t, 0)
	require.Equal(t, []int{1, 2, 3}, []int{a.Position, b.Position, c.Position})
	f.assign(t, a.ID, "q1", "ana", "")

	_, _, err := f.svc.AssignToLoad(context.Background(), b.ID, dto.AssignRequest{QueueEntryID: "q2", InstructorID: "ana"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInstructorConflict.Code))
	assert.Contains(t, err.Error(), "load #3")

	avail, err := f.svc.Availability(context.Background(), "ana", 2)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	require.NotNil(t, avail.NextAvailablePosition)
	assert.Equal(t, 3, *avail.NextAvailablePosition)

	f.assign(t, c.ID, "q2", "ana", "")
}

func TestManifestAssignGroupChecksWholeGroup(t *testing.T) {
	f := newManifestFixture(t)
	small := f.createLoad(t, 3)
	big := f.createLoad(t, 0)

	req := dto.AssignGroupRequest{GroupID: "g1", Members: []dto.GroupMemberRequest{
		{QueueEntryID: "q5", InstructorID: "ben"},
		{QueueEntryID: "q6", InstructorID: "eve"},
	}}
	_, _, err := f.svc.AssignGroup(context.Background(), small.ID, req)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCapacityExceeded.Code))
	assert.Empty(t, f.load(t, small.ID).Assignments)

	res, cmd, err := f.svc.AssignGroup(context.Background(), big.ID, req)
	require.NoError(t, err)
	require.Len(t, res.Load.Assignments, 2)
	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, f.queued(t))

	f.history.Record(context.Background(), cmd, "ops")
	_, err = f.history.Undo(context.Background(), "ops")
	require.NoError(t, err)
	assert.Empty(t, f.load(t, big.ID).Assignments)
	assert.Equal(t, []string{"q1", "q2", "q3", "q4", "q5", "q6"}, f.queued(t))
}

func TestManifestUndoRedoRestoresExactState(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	states := []map[string]string{f.dump(t)}
	step := func(cmd *models.Command, err error) {
		t.Helper()
		require.NoError(t, err)
		f.history.Record(ctx, cmd, "ops")
		f.clock.Advance(30 * time.Second)
		states = append(states, f.dump(t))
	}

	res, cmd, err := f.svc.CreateLoad(ctx, dto.CreateLoadRequest{})
	step(cmd, err)
	a := res.Load.ID
	res, cmd, err = f.svc.CreateLoad(ctx, dto.CreateLoadRequest{})
	step(cmd, err)
	b := res.Load.ID

	_, cmd, err = f.svc.AssignToLoad(ctx, a, dto.AssignRequest{QueueEntryID: "q1", InstructorID: "ana"})
	step(cmd, err)
	_, cmd, err = f.svc.AssignToLoad(ctx, a, dto.AssignRequest{QueueEntryID: "q4", InstructorID: "ben", VideoInstructorID: "cat"})
	step(cmd, err)
	_, cmd, err = f.svc.MoveAssignment(ctx, a, "q1", dto.MoveRequest{ToLoadID: b})
	step(cmd, err)
	_, cmd, err = f.svc.UpdateAssignment(ctx, a, "q4", dto.UpdateAssignmentRequest{IsOffDay: boolPtr(true)})
	step(cmd, err)
	_, cmd, err = f.svc.ApplyDelay(ctx, a, dto.DelayRequest{Minutes: 5})
	step(cmd, err)
	_, cmd, err = f.svc.Transition(ctx, a, dto.TransitionRequest{Status: models.LoadStatusReady})
	step(cmd, err)
	_, cmd, err = f.svc.ReturnToQueue(ctx, b, "q1")
	step(cmd, err)
	_, cmd, err = f.svc.AssignToLoad(ctx, b, dto.AssignRequest{QueueEntryID: "q2", InstructorID: "eve"})
	step(cmd, err)
	_, cmd, err = f.svc.DeleteLoad(ctx, b, false)
	step(cmd, err)

	last := len(states) - 1
	for i := last; i > 0; i-- {
		_, err := f.history.Undo(ctx, "ops")
		require.NoError(t, err, "undo step %d", i)
		assert.Equal(t, states[i-1], f.dump(t), "state after undoing step %d", i)
	}
	_, err = f.history.Undo(ctx, "ops")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNothingToUndo.Code))

	for i := 1; i <= last; i++ {
		_, err := f.history.Redo(ctx, "ops")
		require.NoError(t, err, "redo step %d", i)
		assert.Equal(t, states[i], f.dump(t), "state after redoing step %d", i)
	}
	view := f.history.View()
	assert.Equal(t, last, view.Cursor)
	assert.False(t, view.CanRedo)
}

func TestManifestUndoFailsWhenStateMoved(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	a := f.createLoad(t, 0)
	f.assign(t, a.ID, "q1", "ana", "")
	f.transition(t, a.ID, models.LoadStatusReady)

	// Another operator departs the load outside this history.
	_, _, err := f.svc.Transition(ctx, a.ID, dto.TransitionRequest{Status: models.LoadStatusDeparted})
	require.NoError(t, err)

	before := f.history.View()
	_, err = f.history.Undo(ctx, "ops")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
	assert.Equal(t, before.Cursor, f.history.View().Cursor)
	assert.Equal(t, models.LoadStatusDeparted, f.load(t, a.ID).Status)
}

func TestManifestTransitionRules(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	a := f.createLoad(t, 0)

	_, _, err := f.svc.Transition(ctx, a.ID, dto.TransitionRequest{Status: models.LoadStatusDeparted})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))

	_, _, err = f.svc.Transition(ctx, a.ID, dto.TransitionRequest{Status: "boarding"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	f.transition(t, a.ID, models.LoadStatusReady)
	f.transition(t, a.ID, models.LoadStatusDeparted)

	_, _, err = f.svc.AssignToLoad(ctx, a.ID, dto.AssignRequest{QueueEntryID: "q1", InstructorID: "ana"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
}

func TestManifestExampleScenario(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	board := NewBoardService(f.loads, f.settings, nil, nil, nil, WithBoardClock(f.clock.Now))
	periods := NewPeriodService(f.periods, f.loads, f.instructors, nil, nil, nil, WithPeriodClock(f.clock.Now))

	a := f.createLoad(t, 0)
	b := f.createLoad(t, 0)
	f.assign(t, a.ID, "q1", "ana", "")
	f.assign(t, b.ID, "q2", "eve", "")

	balance, err := periods.InstructorBalance(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 40.0, balance)

	f.transition(t, a.ID, models.LoadStatusReady)
	readyAt := f.clock.Now()
	require.NotNil(t, f.load(t, a.ID).CountdownStartTime)

	cd, err := board.Countdown(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.CountdownRunning, cd.State)
	assert.Equal(t, "20:00", cd.Label)

	f.transition(t, b.ID, models.LoadStatusReady)
	assert.Nil(t, f.load(t, b.ID).CountdownStartTime)
	cd, err = board.Countdown(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.CountdownWaiting, cd.State)
	assert.Equal(t, "waiting on load #1", cd.Label)

	f.clock.Advance(20 * time.Minute)
	cd, err = board.Countdown(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.CountdownClear, cd.State)
	assert.Equal(t, engine.LabelClearToDepart, cd.Label)
	cd, err = board.Countdown(ctx, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, engine.CountdownClear, cd.State)

	f.transition(t, a.ID, models.LoadStatusDeparted)
	departedAt := f.clock.Now()
	assert.Equal(t, readyAt.Add(20*time.Minute), departedAt)
	stampedB := f.load(t, b.ID)
	require.NotNil(t, stampedB.CountdownStartTime)
	assert.Equal(t, departedAt, *stampedB.CountdownStartTime)

	balance, err = periods.InstructorBalance(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 40.0, balance)

	f.transition(t, a.ID, models.LoadStatusCompleted)
	balance, err = periods.InstructorBalance(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, 40.0, balance)
	balance, err = periods.InstructorBalance(ctx, "eve")
	require.NoError(t, err)
	assert.Equal(t, 50.0, balance)

	// Undoing the completion and the departure clears B's cascaded stamp.
	_, err = f.history.Undo(ctx, "ops")
	require.NoError(t, err)
	_, err = f.history.Undo(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, models.LoadStatusReady, f.load(t, a.ID).Status)
	assert.Nil(t, f.load(t, b.ID).CountdownStartTime)
}

func TestManifestDeleteLoadReturnsStudentsAndRenumbers(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	a := f.createLoad(t, 0)
	b := f.createLoad(t, 0)
	c := f.createLoad(t, 0)
	f.assign(t, b.ID, "q1", "ana", "")

	res, cmd, err := f.svc.DeleteLoad(ctx, b.ID, false)
	require.NoError(t, err)
	f.history.Record(ctx, cmd, "ops")
	assert.Equal(t, []models.PositionChange{{LoadID: c.ID, From: 3, To: 2}}, res.Positions)
	assert.Equal(t, 2, f.load(t, c.ID).Position)
	assert.Contains(t, f.queued(t), "q1")

	_, err = f.history.Undo(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, f.load(t, b.ID).Position)
	assert.Equal(t, 3, f.load(t, c.ID).Position)
	assert.NotContains(t, f.queued(t), "q1")

	f.transition(t, a.ID, models.LoadStatusReady)
	f.transition(t, a.ID, models.LoadStatusDeparted)
	f.transition(t, a.ID, models.LoadStatusCompleted)
	_, _, err = f.svc.DeleteLoad(ctx, a.ID, false)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
	_, _, err = f.svc.DeleteLoad(ctx, a.ID, true)
	require.NoError(t, err)
}

func TestManifestReorderLoads(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	a := f.createLoad(t, 0)
	b := f.createLoad(t, 0)
	c := f.createLoad(t, 0)

	_, _, err := f.svc.ReorderLoads(ctx, dto.ReorderLoadsRequest{LoadIDs: []string{c.ID, a.ID}})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	res, cmd, err := f.svc.ReorderLoads(ctx, dto.ReorderLoadsRequest{LoadIDs: []string{c.ID, a.ID, b.ID}})
	require.NoError(t, err)
	f.history.Record(ctx, cmd, "ops")
	assert.Len(t, res.Positions, 3)
	assert.Equal(t, 1, f.load(t, c.ID).Position)
	assert.Equal(t, 2, f.load(t, a.ID).Position)
	assert.Equal(t, 3, f.load(t, b.ID).Position)

	_, err = f.history.Undo(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, f.load(t, a.ID).Position)
	assert.Equal(t, 2, f.load(t, b.ID).Position)
	assert.Equal(t, 3, f.load(t, c.ID).Position)
}

func TestManifestUpdateAssignment(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	a := f.createLoad(t, 0)
	f.assign(t, a.ID, "q1", "ana", "")

	_, _, err := f.svc.UpdateAssignment(ctx, a.ID, "q1", dto.UpdateAssignmentRequest{InstructorID: stringPtr("dan")})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrQualificationMismatch.Code))

	res, cmd, err := f.svc.UpdateAssignment(ctx, a.ID, "q1", dto.UpdateAssignmentRequest{InstructorID: stringPtr("ben")})
	require.NoError(t, err)
	assert.Equal(t, "ben", res.Load.Assignments[0].InstructorID)
	assert.Equal(t, "ana", cmd.Patch.Before.InstructorID)

	f.transition(t, a.ID, models.LoadStatusReady)
	f.transition(t, a.ID, models.LoadStatusDeparted)
	_, _, err = f.svc.UpdateAssignment(ctx, a.ID, "q1", dto.UpdateAssignmentRequest{InstructorID: stringPtr("eve")})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))

	res, _, err = f.svc.UpdateAssignment(ctx, a.ID, "q1", dto.UpdateAssignmentRequest{IsMissed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, res.Load.Assignments[0].IsMissed)
}

func TestManifestRequestedInstructorWarning(t *testing.T) {
	f := newManifestFixture(t)
	ctx := context.Background()
	entry, err := f.queue.Get(ctx, "q1")
	require.NoError(t, err)
	entry.IsRequest = true
	entry.RequestedInstructorID = "eve"
	require.NoError(t, f.queue.Put(ctx, *entry))
	a := f.createLoad(t, 0)

	res := f.assign(t, a.ID, "q1", "ana", "")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "requested instructor eve")
}
