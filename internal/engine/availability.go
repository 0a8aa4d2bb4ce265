package engine

import "github.com/noah-isme/dz-manifest-api/internal/models"

// LoadsToSkip converts the instructor ground turnaround into a number of load cycles.
func LoadsToSkip(cycleTimeMinutes, minutesBetweenLoads int) int {
	if cycleTimeMinutes <= 0 {
		return 0
	}
	if minutesBetweenLoads <= 0 {
		return 1
	}
	return (cycleTimeMinutes + minutesBetweenLoads - 1) / minutesBetweenLoads
}

// HighestPosition returns the highest position among non-completed loads where
// the instructor appears in either role.
func HighestPosition(instructorID string, loads []models.Load) (int, bool) {
	highest, found := 0, false
	for _, l := range loads {
		if l.Status == models.LoadStatusCompleted {
			continue
		}
		for _, a := range l.Assignments {
			if a.InstructorID != instructorID && a.VideoInstructorID != instructorID {
				continue
			}
			if !found || l.Position > highest {
				highest, found = l.Position, true
			}
			break
		}
	}
	return highest, found
}

// NextAvailablePosition returns the first load position the instructor may be
// assigned to. The second result is false when there is no constraint.
func NextAvailablePosition(instructorID string, activeLoads []models.Load, cycleTimeMinutes, minutesBetweenLoads int) (int, bool) {
	highest, found := HighestPosition(instructorID, activeLoads)
	if !found {
		return 0, false
	}
	return highest + LoadsToSkip(cycleTimeMinutes, minutesBetweenLoads), true
}

// IsInstructorAvailable reports whether the instructor can be placed on targetPosition.
func IsInstructorAvailable(instructorID string, targetPosition int, activeLoads []models.Load, cycleTimeMinutes, minutesBetweenLoads int) bool {
	next, constrained := NextAvailablePosition(instructorID, activeLoads, cycleTimeMinutes, minutesBetweenLoads)
	return !constrained || targetPosition >= next
}

// ExcludeLoad returns loads without the load with the given id.
func ExcludeLoad(loads []models.Load, loadID string) []models.Load {
	out := make([]models.Load, 0, len(loads))
	for _, l := range loads {
		if l.ID != loadID {
			out = append(out, l)
		}
	}
	return out
}
