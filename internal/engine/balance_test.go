package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

func TestAssignmentPay(t *testing.T) {
	cases := []struct {
		name string
		a    models.LoadAssignment
		want float64
	}{
		{name: "light tandem", a: tandem("1", "i1", 180), want: 40},
		{name: "tier 1", a: tandem("1", "i1", 201), want: 45},
		{name: "tier 2 at boundary stays tier 1", a: tandem("1", "i1", 220), want: 45},
		{name: "tier 3", a: tandem("1", "i1", 250), want: 55},
		{name: "handcam", a: models.LoadAssignment{JumpType: models.JumpTypeTandem, StudentWeight: 150, HasHandcam: true}, want: 50},
		{name: "aff level 1", a: models.LoadAssignment{JumpType: models.JumpTypeAFF, AFFLevel: 1}, want: 60},
		{name: "aff level 3", a: models.LoadAssignment{JumpType: models.JumpTypeAFF, AFFLevel: 3}, want: 50},
		{name: "aff unknown level", a: models.LoadAssignment{JumpType: models.JumpTypeAFF, AFFLevel: 12}, want: 45},
		{name: "missed", a: models.LoadAssignment{JumpType: models.JumpTypeTandem, IsMissed: true}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AssignmentPay(tc.a, DefaultRates))
		})
	}
}

func TestCalculateBalanceAndEarnings(t *testing.T) {
	period := models.Period{ID: "p1", Start: baseTime}
	flown := baseTime.Add(time.Hour)

	plain := tandem("1", "i1", 180)
	request := tandem("2", "i1", 180)
	request.IsRequest = true
	offDay := tandem("3", "i1", 180)
	offDay.IsOffDay = true
	missed := tandem("4", "i1", 180)
	missed.IsMissed = true
	videoFor := models.LoadAssignment{ID: "5", InstructorID: "i2", VideoInstructorID: "i1", JumpType: models.JumpTypeTandem, HasOutsideVideo: true, StudentWeight: 150}
	beforePeriod := tandem("6", "i1", 180)

	records := []models.AssignmentRecord{
		{LoadID: "a", CompletedAt: flown, Assignment: plain},
		{LoadID: "a", CompletedAt: flown, Assignment: request},
		{LoadID: "b", CompletedAt: flown, Assignment: offDay},
		{LoadID: "b", CompletedAt: flown, Assignment: missed},
		{LoadID: "c", CompletedAt: flown, Assignment: videoFor},
		{LoadID: "z", CompletedAt: baseTime.Add(-time.Hour), Assignment: beforePeriod},
	}
	pending := []models.Load{load("d", models.LoadStatusBuilding, 1, tandem("7", "i1", 230))}

	in := BalanceInput{InstructorID: "i1", Records: records, Period: period, PendingLoads: pending}

	// 40 plain + 48 off-day + 30 video + 50 pending tandem with the 220 lb tier.
	assert.Equal(t, 168.0, CalculateBalance(in))
	// 40 plain + 40 request + 40 off-day + 30 video; pending is not owed yet.
	assert.Equal(t, 150.0, CalculateEarnings(in))

	totals := CalculateTotals(in)
	assert.Equal(t, 4, totals.Jumps)
	assert.Equal(t, 168.0, totals.Balance)
	assert.Equal(t, 150.0, totals.Earnings)
}

func TestCalculateBalanceUnknownInstructor(t *testing.T) {
	in := BalanceInput{
		InstructorID: "ghost",
		Records:      []models.AssignmentRecord{{CompletedAt: baseTime, Assignment: tandem("1", "ghost", 180)}},
		Instructors:  []models.Instructor{{ID: "i1"}},
		Period:       models.Period{Start: baseTime},
	}
	assert.Zero(t, CalculateBalance(in))
	assert.Zero(t, CalculateEarnings(in))
}

func TestRecordsFromLoadsKeepsCompletedOnly(t *testing.T) {
	done := load("a", models.LoadStatusCompleted, 1, tandem("1", "i1", 180))
	done.CompletedAt = timePtr(baseTime)
	records := RecordsFromLoads([]models.Load{done, load("b", models.LoadStatusDeparted, 2, tandem("2", "i1", 180))})
	assert.Len(t, records, 1)
	assert.Equal(t, "a", records[0].LoadID)
}
