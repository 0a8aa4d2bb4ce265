package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dz-manifest-api/internal/dto"
	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

// errSkipWrite aborts a transaction without writing and without failing the command.
var errSkipWrite = errors.New("skip write")

// The apply functions below are shared by the forward operations and by
// Execute. In forward mode they record what actually happened (indexes,
// before-values, renumbering) on cmd inside the transaction, so the command
// and its inverse replay exactly. In replay mode they follow cmd verbatim.

func (s *ManifestService) applyAssign(ctx context.Context, cmd *models.Command, forward bool) (*dto.ManifestResult, error) {
	load, err := s.loads.Transact(ctx, cmd.LoadID, func(l *models.Load) error {
		if err := requireOpen(*l); err != nil {
			return err
		}
		incoming := make([]models.LoadAssignment, len(cmd.Placements))
		for i, p := range cmd.Placements {
			if l.IndexOf(p.Assignment.ID) >= 0 {
				return appErrors.Clonef(appErrors.ErrConflict, "%s is already on load #%d", studentLabel(p.Assignment), l.Position)
			}
			incoming[i] = p.Assignment
		}
		if err := engine.ValidateCapacity(*l, incoming); err != nil {
			return err
		}
		proposed := append(append([]models.LoadAssignment(nil), l.Assignments...), incoming...)
		if err := engine.ValidateNoConflict(*l, proposed); err != nil {
			return err
		}
		if forward {
			for i := range cmd.Placements {
				cmd.Placements[i].Index = len(l.Assignments)
				l.Assignments = append(l.Assignments, cmd.Placements[i].Assignment)
			}
			return nil
		}
		for _, p := range cmd.Placements {
			l.Assignments = insertAt(l.Assignments, p.Index, p.Assignment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &dto.ManifestResult{Load: load}
	for _, p := range cmd.Placements {
		if err := s.queue.Remove(ctx, p.Assignment.ID); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
			s.logger.Warn("queue cleanup after assign failed",
				zap.String("load_id", cmd.LoadID),
				zap.String("queue_entry_id", p.Assignment.ID),
				zap.Error(err),
			)
			result.QueueCleanupPending = true
		}
	}
	if result.QueueCleanupPending {
		s.scheduleReconcile("queue cleanup after assign", nil)
	}
	return result, nil
}

func (s *ManifestService) applyReturn(ctx context.Context, cmd *models.Command, forward bool) (*dto.ManifestResult, error) {
	load, err := s.loads.Transact(ctx, cmd.LoadID, func(l *models.Load) error {
		if err := requireOpen(*l); err != nil {
			return err
		}
		for i := len(cmd.Placements) - 1; i >= 0; i-- {
			p := &cmd.Placements[i]
			idx := l.IndexOf(p.Assignment.ID)
			if idx < 0 {
				return appErrors.Clonef(appErrors.ErrNotFound, "%s is no longer on load #%d", studentLabel(p.Assignment), l.Position)
			}
			if forward {
				p.Assignment = l.Assignments[idx]
				p.Index = idx
			}
			l.Assignments = append(l.Assignments[:idx], l.Assignments[idx+1:]...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &dto.ManifestResult{Load: load}
	restore := make([]models.QueueEntry, 0)
	for _, p := range cmd.Placements {
		entry := p.Assignment.QueueEntry()
		if err := s.queue.Put(ctx, entry); err != nil {
			s.logger.Warn("queue restore after removal failed",
				zap.String("load_id", cmd.LoadID),
				zap.String("queue_entry_id", entry.ID),
				zap.Error(err),
			)
			restore = append(restore, entry)
		}
	}
	if len(restore) > 0 {
		result.QueueCleanupPending = true
		s.scheduleReconcile("queue restore after removal", restore)
	}
	return result, nil
}

func (s *ManifestService) applyMove(ctx context.Context, cmd *models.Command, forward bool) (*dto.ManifestResult, error) {
	target, err := s.loads.Transact(ctx, cmd.LoadID, func(l *models.Load) error {
		if err := requireOpen(*l); err != nil {
			return err
		}
		incoming := make([]models.LoadAssignment, len(cmd.Placements))
		for i, p := range cmd.Placements {
			if l.IndexOf(p.Assignment.ID) >= 0 {
				return appErrors.Clonef(appErrors.ErrConflict, "%s is already on load #%d", studentLabel(p.Assignment), l.Position)
			}
			incoming[i] = p.Assignment
		}
		if err := engine.ValidateCapacity(*l, incoming); err != nil {
			return err
		}
		proposed := append(append([]models.LoadAssignment(nil), l.Assignments...), incoming...)
		if err := engine.ValidateNoConflict(*l, proposed); err != nil {
			return err
		}
		for i := range cmd.Placements {
			if forward {
				cmd.Placements[i].Index = len(l.Assignments)
				l.Assignments = append(l.Assignments, cmd.Placements[i].Assignment)
				continue
			}
			l.Assignments = insertAt(l.Assignments, cmd.Placements[i].Index, cmd.Placements[i].Assignment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &dto.ManifestResult{Load: target}
	source, err := s.loads.Transact(ctx, cmd.FromLoadID, func(l *models.Load) error {
		removed := 0
		for i := len(cmd.Placements) - 1; i >= 0; i-- {
			p := &cmd.Placements[i]
			idx := l.IndexOf(p.Assignment.ID)
			if idx < 0 {
				continue
			}
			if forward {
				original := l.Assignments[idx]
				p.Source = &original
				p.SourceIndex = idx
			}
			l.Assignments = append(l.Assignments[:idx], l.Assignments[idx+1:]...)
			removed++
		}
		if removed == 0 {
			return errSkipWrite
		}
		return nil
	})
	switch {
	case err == nil:
		result.SourceLoad = source
	case errors.Is(err, errSkipWrite):
	default:
		// The students now sit on both loads until reconciliation keeps the newest placement.
		s.logger.Warn("source removal after move failed",
			zap.String("from_load_id", cmd.FromLoadID),
			zap.String("to_load_id", cmd.LoadID),
			zap.Error(err),
		)
		result.QueueCleanupPending = true
		s.scheduleReconcile("source removal after move", nil)
	}
	return result, nil
}

// applyPatch edits one assignment. recompute is set in forward mode and
// derives the new fields from the latest record; replay requires the record to
// still hold the patch's before-values.
func (s *ManifestService) applyPatch(ctx context.Context, cmd *models.Command, recompute func(latest models.AssignmentFields) models.AssignmentFields) (*dto.ManifestResult, error) {
	if cmd.Patch == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "update command carries no patch")
	}
	patch := cmd.Patch
	load, err := s.loads.Transact(ctx, cmd.LoadID, func(l *models.Load) error {
		idx := l.IndexOf(patch.AssignmentID)
		if idx < 0 {
			return appErrors.Clonef(appErrors.ErrNotFound, "assignment %s is not on load #%d", patch.AssignmentID, l.Position)
		}
		current := models.FieldsOf(l.Assignments[idx])
		if recompute != nil {
			patch.Before = current
			patch.After = recompute(current)
		} else if current != patch.Before {
			return appErrors.Clonef(appErrors.ErrConflict, "%s on load #%d has changed since this action", studentLabel(l.Assignments[idx]), l.Position)
		}
		if instructorsChanged(patch.Before, patch.After) {
			if err := requireOpen(*l); err != nil {
				return err
			}
		}
		setFields(&l.Assignments[idx], patch.After)
		return engine.ValidateNoConflict(*l, l.Assignments)
	})
	if err != nil {
		return nil, err
	}
	return &dto.ManifestResult{Load: load}, nil
}

func (s *ManifestService) applyTransitionForward(ctx context.Context, cmd *models.Command, to models.LoadStatus) (*dto.ManifestResult, error) {
	now := s.now()
	var plan []models.StateChange
	load, err := s.loads.Transact(ctx, cmd.LoadID, func(l *models.Load) error {
		// Re-read on every attempt; neighbours may have moved since the last one.
		all, err := s.loads.List(ctx)
		if err != nil {
			return err
		}
		changes, err := engine.PlanTransition(*l, to, all, now)
		if err != nil {
			return err
		}
		engine.ApplyState(l, changes[0].After)
		plan = changes
		return nil
	})
	if err != nil {
		return nil, err
	}

	cmd.States = []models.StateChange{plan[0]}
	for _, change := range plan[1:] {
		applied, err := s.applyStateChange(ctx, change)
		if err != nil {
			s.logger.Warn("countdown cascade failed", zap.String("load_id", change.LoadID), zap.Error(err))
			continue
		}
		if applied {
			cmd.States = append(cmd.States, change)
		}
	}
	positions, err := s.renumber(ctx)
	if err != nil {
		return nil, err
	}
	cmd.Positions = positions
	cmd.States = append(cmd.States, s.stampAnchor(ctx, now)...)
	return &dto.ManifestResult{Load: load, Positions: positions}, nil
}

func (s *ManifestService) applyTransitionReplay(ctx context.Context, cmd *models.Command) (*dto.ManifestResult, error) {
	if len(cmd.States) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "transition command carries no state changes")
	}
	first := cmd.States[0]
	load, err := s.loads.Transact(ctx, first.LoadID, func(l *models.Load) error {
		if l.Status != first.Before.Status {
			return appErrors.Clonef(appErrors.ErrInvalidTransition, "load #%d is %s, expected %s", l.Position, l.Status, first.Before.Status)
		}
		engine.ApplyState(l, first.After)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.applyStates(ctx, cmd.States[1:])
	if err := s.applyPositions(ctx, cmd.Positions); err != nil {
		return nil, err
	}
	return &dto.ManifestResult{Load: load, Positions: cmd.Positions}, nil
}

// applyStateChange writes change only when the load still holds its before-state.
func (s *ManifestService) applyStateChange(ctx context.Context, change models.StateChange) (bool, error) {
	_, err := s.loads.Transact(ctx, change.LoadID, func(l *models.Load) error {
		if !sameState(models.StateOf(*l), change.Before) {
			return errSkipWrite
		}
		engine.ApplyState(l, change.After)
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errSkipWrite), errors.Is(err, appErrors.ErrNotFound):
		return false, nil
	}
	return false, err
}

// stampAnchor starts the anchor's countdown when the latest load set leaves it
// ready, unblocked and without a timer. It returns the change it wrote.
func (s *ManifestService) stampAnchor(ctx context.Context, now time.Time) []models.StateChange {
	loads, err := s.loads.List(ctx)
	if err != nil {
		s.logger.Warn("countdown cascade skipped", zap.Error(err))
		return nil
	}
	change, ok := engine.CascadeStamp(loads, now)
	if !ok {
		return nil
	}
	applied, err := s.applyStateChange(ctx, change)
	if err != nil {
		s.logger.Warn("countdown cascade failed", zap.String("load_id", change.LoadID), zap.Error(err))
		return nil
	}
	if !applied {
		return nil
	}
	return []models.StateChange{change}
}

// applyStates replays recorded lifecycle changes on other loads.
func (s *ManifestService) applyStates(ctx context.Context, changes []models.StateChange) {
	for _, change := range changes {
		if _, err := s.applyStateChange(ctx, change); err != nil {
			s.logger.Warn("countdown cascade replay failed", zap.String("load_id", change.LoadID), zap.Error(err))
		}
	}
}

func (s *ManifestService) applyDelay(ctx context.Context, cmd *models.Command) (*dto.ManifestResult, error) {
	load, err := s.loads.Transact(ctx, cmd.LoadID, func(l *models.Load) error {
		if err := requireOpen(*l); err != nil {
			return err
		}
		next := l.DelayMinutes + cmd.Delay
		if next < 0 {
			return appErrors.Clonef(appErrors.ErrValidation, "load #%d is only delayed by %d min", l.Position, l.DelayMinutes)
		}
		l.DelayMinutes = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.ManifestResult{Load: load}, nil
}

func (s *ManifestService) applyCreate(ctx context.Context, cmd *models.Command) (*dto.ManifestResult, error) {
	if cmd.Load == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "create command carries no load")
	}
	if err := s.applyPositions(ctx, cmd.Positions); err != nil {
		return nil, err
	}
	load := cmd.Load.Clone()
	if err := s.loads.Create(ctx, load); err != nil {
		return nil, err
	}
	s.applyStates(ctx, cmd.States)
	result := &dto.ManifestResult{Load: &load, Positions: cmd.Positions}
	for _, a := range load.Assignments {
		if err := s.queue.Remove(ctx, a.ID); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
			s.logger.Warn("queue cleanup after load restore failed", zap.String("queue_entry_id", a.ID), zap.Error(err))
			result.QueueCleanupPending = true
		}
	}
	if result.QueueCleanupPending {
		s.scheduleReconcile("queue cleanup after load restore", nil)
	}
	return result, nil
}

func (s *ManifestService) applyDelete(ctx context.Context, cmd *models.Command, forward, confirm bool) (*dto.ManifestResult, error) {
	deleted, err := s.loads.DeleteIf(ctx, cmd.LoadID, func(l models.Load) error {
		if l.Status == models.LoadStatusCompleted && !confirm {
			return appErrors.Clonef(appErrors.ErrPreconditionFailed, "load #%d is completed; pass confirm=true to delete it", l.Position)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if forward {
		snapshot := deleted.Clone()
		cmd.Load = &snapshot
	}

	result := &dto.ManifestResult{Load: deleted}
	restore := make([]models.QueueEntry, 0)
	for _, a := range deleted.Assignments {
		entry := a.QueueEntry()
		if err := s.queue.Put(ctx, entry); err != nil {
			s.logger.Warn("queue restore after delete failed", zap.String("queue_entry_id", entry.ID), zap.Error(err))
			restore = append(restore, entry)
		}
	}
	if len(restore) > 0 {
		result.QueueCleanupPending = true
		s.scheduleReconcile("queue restore after delete", restore)
	}

	if forward {
		positions, err := s.renumber(ctx)
		if err != nil {
			return nil, err
		}
		cmd.Positions = positions
		// Removing the load ahead may unblock the next ready load.
		cmd.States = s.stampAnchor(ctx, s.now())
	} else {
		if err := s.applyPositions(ctx, cmd.Positions); err != nil {
			return nil, err
		}
		s.applyStates(ctx, cmd.States)
	}
	result.Positions = cmd.Positions
	return result, nil
}

func (s *ManifestService) applyReorder(ctx context.Context, cmd *models.Command, forward bool) (*dto.ManifestResult, error) {
	applied := make([]models.SortOrderChange, 0, len(cmd.SortOrders))
	for _, change := range cmd.SortOrders {
		change := change
		_, err := s.loads.Transact(ctx, change.LoadID, func(l *models.Load) error {
			if l.Status != models.LoadStatusBuilding {
				return errSkipWrite
			}
			if forward {
				change.From = cloneInt(l.SortOrder)
			}
			l.SortOrder = cloneInt(change.To)
			return nil
		})
		switch {
		case err == nil:
			applied = append(applied, change)
		case errors.Is(err, errSkipWrite), errors.Is(err, appErrors.ErrNotFound):
		default:
			return nil, err
		}
	}

	if forward {
		cmd.SortOrders = applied
		positions, err := s.renumber(ctx)
		if err != nil {
			return nil, err
		}
		cmd.Positions = positions
	} else if err := s.applyPositions(ctx, cmd.Positions); err != nil {
		return nil, err
	}
	return &dto.ManifestResult{Positions: cmd.Positions}, nil
}

// renumber closes position gaps among building loads and returns the changes
// that were written. A load that moved or left building since the plan was
// computed is skipped.
func (s *ManifestService) renumber(ctx context.Context) ([]models.PositionChange, error) {
	loads, err := s.loads.List(ctx)
	if err != nil {
		return nil, err
	}
	applied := make([]models.PositionChange, 0)
	for _, change := range engine.RenumberPositions(loads) {
		change := change
		_, err := s.loads.Transact(ctx, change.LoadID, func(l *models.Load) error {
			if l.Status != models.LoadStatusBuilding || l.Position != change.From {
				return errSkipWrite
			}
			l.Position = change.To
			return nil
		})
		switch {
		case err == nil:
			applied = append(applied, change)
		case errors.Is(err, errSkipWrite), errors.Is(err, appErrors.ErrNotFound):
		default:
			return nil, err
		}
	}
	if len(applied) == 0 {
		return nil, nil
	}
	return applied, nil
}

// applyPositions writes recorded position changes onto whichever loads still exist.
func (s *ManifestService) applyPositions(ctx context.Context, changes []models.PositionChange) error {
	for _, change := range changes {
		change := change
		_, err := s.loads.Transact(ctx, change.LoadID, func(l *models.Load) error {
			l.Position = change.To
			return nil
		})
		if err != nil && !errors.Is(err, appErrors.ErrNotFound) {
			return err
		}
	}
	return nil
}

func insertAt(list []models.LoadAssignment, index int, a models.LoadAssignment) []models.LoadAssignment {
	if index < 0 {
		index = 0
	}
	if index >= len(list) {
		return append(list, a)
	}
	list = append(list, models.LoadAssignment{})
	copy(list[index+1:], list[index:])
	list[index] = a
	return list
}

func setFields(a *models.LoadAssignment, f models.AssignmentFields) {
	a.InstructorID = f.InstructorID
	a.VideoInstructorID = f.VideoInstructorID
	a.IsMissed = f.IsMissed
	a.IsOffDay = f.IsOffDay
}

func sameState(a, b models.LoadState) bool {
	return a.Status == b.Status &&
		sameTime(a.CountdownStartTime, b.CountdownStartTime) &&
		sameTime(a.DepartedAt, b.DepartedAt) &&
		sameTime(a.CompletedAt, b.CompletedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
