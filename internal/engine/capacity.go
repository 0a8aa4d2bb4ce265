package engine

import (
	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

// SeatsUsed sums the seats taken by the provided assignments.
func SeatsUsed(assignments []models.LoadAssignment) int {
	total := 0
	for _, a := range assignments {
		total += a.Seats()
	}
	return total
}

// SeatsAvailable returns the remaining seats on the load, never negative.
func SeatsAvailable(load models.Load) int {
	free := load.Capacity - SeatsUsed(load.Assignments)
	if free < 0 {
		return 0
	}
	return free
}

// ValidateCapacity rejects incoming assignments that do not fit on the load.
func ValidateCapacity(load models.Load, incoming []models.LoadAssignment) error {
	need := SeatsUsed(incoming)
	available := SeatsAvailable(load)
	if need > available {
		return appErrors.Clonef(appErrors.ErrCapacityExceeded, "need %d seats, %d available on load #%d", need, available, load.Position)
	}
	return nil
}

// FindInstructorConflict returns the first instructor id used more than once
// across both roles of the assignment list.
func FindInstructorConflict(assignments []models.LoadAssignment) (string, bool) {
	seen := make(map[string]struct{}, len(assignments)*2)
	for _, a := range assignments {
		for _, id := range []string{a.InstructorID, a.VideoInstructorID} {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				return id, true
			}
			seen[id] = struct{}{}
		}
	}
	return "", false
}

// ValidateNoConflict checks the proposed assignment list of one load.
func ValidateNoConflict(load models.Load, proposed []models.LoadAssignment) error {
	if id, dup := FindInstructorConflict(proposed); dup {
		return appErrors.Clonef(appErrors.ErrInstructorConflict, "instructor %s is already on load #%d", id, load.Position)
	}
	return nil
}
