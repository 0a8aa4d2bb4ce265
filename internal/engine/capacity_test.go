package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/models"
	appErrors "github.com/noah-isme/dz-manifest-api/pkg/errors"
)

func TestValidateCapacity(t *testing.T) {
	l := load("a", models.LoadStatusBuilding, 1)
	l.Capacity = 5
	withVideo := tandem("s1", "i1", 180)
	withVideo.HasOutsideVideo = true

	require.NoError(t, ValidateCapacity(l, []models.LoadAssignment{withVideo}))

	l.Assignments = []models.LoadAssignment{withVideo}
	assert.Equal(t, 3, SeatsUsed(l.Assignments))
	assert.Equal(t, 2, SeatsAvailable(l))
	require.NoError(t, ValidateCapacity(l, []models.LoadAssignment{tandem("s2", "i2", 150)}))

	err := ValidateCapacity(l, []models.LoadAssignment{withVideo})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCapacityExceeded.Code))
	assert.Contains(t, err.Error(), "need 3 seats, 2 available")
}

func TestFindInstructorConflict(t *testing.T) {
	cases := []struct {
		name        string
		assignments []models.LoadAssignment
		conflict    string
	}{
		{name: "distinct", assignments: []models.LoadAssignment{tandem("1", "i1", 0), tandem("2", "i2", 0)}},
		{name: "unassigned never conflicts", assignments: []models.LoadAssignment{tandem("1", "", 0), tandem("2", "", 0)}},
		{name: "same primary twice", assignments: []models.LoadAssignment{tandem("1", "i1", 0), tandem("2", "i1", 0)}, conflict: "i1"},
		{name: "primary and video on different assignments", assignments: []models.LoadAssignment{
			tandem("1", "i1", 0),
			{ID: "2", InstructorID: "i2", VideoInstructorID: "i1", HasOutsideVideo: true},
		}, conflict: "i1"},
		{name: "primary and video on one assignment", assignments: []models.LoadAssignment{
			{ID: "1", InstructorID: "i3", VideoInstructorID: "i3", HasOutsideVideo: true},
		}, conflict: "i3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, found := FindInstructorConflict(tc.assignments)
			assert.Equal(t, tc.conflict != "", found)
			assert.Equal(t, tc.conflict, id)
		})
	}

	err := ValidateNoConflict(load("a", models.LoadStatusBuilding, 4), []models.LoadAssignment{tandem("1", "i1", 0), tandem("2", "i1", 0)})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInstructorConflict.Code))
	assert.Contains(t, err.Error(), "load #4")
}
