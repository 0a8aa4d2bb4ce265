package engine

import (
	"time"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

var baseTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func load(id string, status models.LoadStatus, position int, assignments ...models.LoadAssignment) models.Load {
	if assignments == nil {
		assignments = []models.LoadAssignment{}
	}
	return models.Load{ID: id, Status: status, Position: position, Capacity: 18, Assignments: assignments, CreatedAt: baseTime}
}

func tandem(id, instructorID string, weight int) models.LoadAssignment {
	return models.LoadAssignment{ID: id, StudentID: "stu-" + id, InstructorID: instructorID, StudentWeight: weight, JumpType: models.JumpTypeTandem}
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
