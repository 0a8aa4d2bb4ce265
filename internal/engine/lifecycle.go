package engine

import (
	"time"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

var nextStatus = map[models.LoadStatus]models.LoadStatus{
	models.LoadStatusBuilding: models.LoadStatusReady,
	models.LoadStatusReady:    models.LoadStatusDeparted,
	models.LoadStatusDeparted: models.LoadStatusCompleted,
}

// CanTransition allows forward single-step moves only.
func CanTransition(from, to models.LoadStatus) bool {
	next, ok := nextStatus[from]
	return ok && next == to
}

// ValidateTransition wraps CanTransition with an actionable error.
func ValidateTransition(from, to models.LoadStatus) error {
	if !to.Valid() {
		return appErrors.Clonef(appErrors.ErrValidation, "unknown load status %q", to)
	}
	if !CanTransition(from, to) {
		return appErrors.Clonef(appErrors.ErrInvalidTransition, "cannot move load from %s to %s", from, to)
	}
	return nil
}

// PlanTransition computes the state changes produced by moving target to status
// `to`. The first change is always the target; further changes stamp the load
// that becomes the unblocked anchor.
func PlanTransition(target models.Load, to models.LoadStatus, loads []models.Load, now time.Time) ([]models.StateChange, error) {
	if err := ValidateTransition(target.Status, to); err != nil {
		return nil, err
	}
	now = now.UTC()
	before := models.StateOf(target)
	after := models.StateOf(target)
	after.Status = to

	changes := []models.StateChange{{LoadID: target.ID, Before: before}}

	switch to {
	case models.LoadStatusDeparted:
		after.DepartedAt = &now
	case models.LoadStatusCompleted:
		after.CompletedAt = &now
	}
	if to != models.LoadStatusCompleted {
		projected := projectStatus(loads, target, to)
		if stamp, ok := CascadeStamp(projected, now); ok {
			if stamp.LoadID == target.ID {
				after.CountdownStartTime = stamp.After.CountdownStartTime
			} else {
				changes = append(changes, stamp)
			}
		}
	}
	changes[0].After = after
	return changes, nil
}

// CascadeStamp returns the change starting the anchor's countdown at now. An
// anchor that already counts, or has a building load ahead of it, gets none.
func CascadeStamp(loads []models.Load, now time.Time) (models.StateChange, bool) {
	active := make([]models.Load, 0, len(loads))
	for _, l := range loads {
		if !l.Status.Finalized() {
			active = append(active, l)
		}
	}
	anchor, ok := Anchor(active)
	if !ok || anchor.CountdownStartTime != nil {
		return models.StateChange{}, false
	}
	if _, blocked := firstBuildingPredecessor(anchor, active); blocked {
		return models.StateChange{}, false
	}
	now = now.UTC()
	stamped := models.StateOf(anchor)
	stamped.CountdownStartTime = &now
	return models.StateChange{LoadID: anchor.ID, Before: models.StateOf(anchor), After: stamped}, true
}

// ApplyState overwrites the lifecycle fields of l.
func ApplyState(l *models.Load, s models.LoadState) {
	l.Status = s.Status
	l.CountdownStartTime = cloneTime(s.CountdownStartTime)
	l.DepartedAt = cloneTime(s.DepartedAt)
	l.CompletedAt = cloneTime(s.CompletedAt)
}

func projectStatus(loads []models.Load, target models.Load, to models.LoadStatus) []models.Load {
	out := make([]models.Load, 0, len(loads)+1)
	seen := false
	for _, l := range loads {
		if l.ID == target.ID {
			l.Status = to
			seen = true
		}
		if !l.Status.Finalized() {
			out = append(out, l)
		}
	}
	if !seen && !to.Finalized() {
		t := target
		t.Status = to
		out = append(out, t)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
