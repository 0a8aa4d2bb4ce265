package engine

import (
	"github.com/noah-isme/dz-manifest-api/internal/models"
)

// BalanceInput is everything the balance and earnings calculators look at.
type BalanceInput struct {
	InstructorID string
	Records      []models.AssignmentRecord
	Instructors  []models.Instructor
	Period       models.Period
	PendingLoads []models.Load
	// Rates defaults to DefaultRates when nil.
	Rates *RateTable
}

func (in BalanceInput) rates() RateTable {
	if in.Rates != nil {
		return *in.Rates
	}
	return DefaultRates
}

// knownInstructor reports whether the instructor is on the roster. An empty
// roster accepts everyone.
func (in BalanceInput) knownInstructor() (models.Instructor, bool) {
	if len(in.Instructors) == 0 {
		return models.Instructor{ID: in.InstructorID}, true
	}
	for _, inst := range in.Instructors {
		if inst.ID == in.InstructorID {
			return inst, true
		}
	}
	return models.Instructor{}, false
}

// CalculateBalance is the rotation-fairness figure: non-request work including
// assignments still sitting on uncompleted loads, with the off-day multiplier.
func CalculateBalance(in BalanceInput) float64 {
	if _, ok := in.knownInstructor(); !ok {
		return 0
	}
	rates := in.rates()
	total := 0.0
	credit := func(a models.LoadAssignment) {
		if a.IsRequest || a.IsMissed {
			return
		}
		pay := 0.0
		if a.InstructorID == in.InstructorID {
			pay += AssignmentPay(a, rates)
		}
		if a.VideoInstructorID == in.InstructorID {
			pay += VideoPay(a, rates)
		}
		if a.IsOffDay {
			pay *= OffDayMultiplier
		}
		total += pay
	}
	for _, rec := range in.Records {
		if in.Period.Contains(rec.CompletedAt) {
			credit(rec.Assignment)
		}
	}
	for _, l := range in.PendingLoads {
		if l.Status == models.LoadStatusCompleted {
			continue
		}
		for _, a := range l.Assignments {
			credit(a)
		}
	}
	return roundCents(total)
}

// CalculateEarnings is the pay owed for flown jumps in the period.
func CalculateEarnings(in BalanceInput) float64 {
	if _, ok := in.knownInstructor(); !ok {
		return 0
	}
	rates := in.rates()
	total := 0.0
	for _, rec := range in.Records {
		if !in.Period.Contains(rec.CompletedAt) {
			continue
		}
		a := rec.Assignment
		if a.InstructorID == in.InstructorID {
			total += AssignmentPay(a, rates)
		}
		if a.VideoInstructorID == in.InstructorID {
			total += VideoPay(a, rates)
		}
	}
	return roundCents(total)
}

// CalculateTotals combines balance, earnings and jump count for one instructor.
func CalculateTotals(in BalanceInput) models.InstructorTotals {
	inst, _ := in.knownInstructor()
	jumps := 0
	for _, rec := range in.Records {
		a := rec.Assignment
		if a.IsMissed || !in.Period.Contains(rec.CompletedAt) {
			continue
		}
		if a.InstructorID == in.InstructorID || a.VideoInstructorID == in.InstructorID {
			jumps++
		}
	}
	return models.InstructorTotals{
		InstructorID:   in.InstructorID,
		InstructorName: inst.Name,
		Balance:        CalculateBalance(in),
		Earnings:       CalculateEarnings(in),
		Jumps:          jumps,
	}
}

// RecordsFromLoads extracts assignment records from completed loads.
func RecordsFromLoads(loads []models.Load) []models.AssignmentRecord {
	out := make([]models.AssignmentRecord, 0)
	for _, l := range loads {
		if l.Status != models.LoadStatusCompleted || l.CompletedAt == nil {
			continue
		}
		for _, a := range l.Assignments {
			out = append(out, models.AssignmentRecord{LoadID: l.ID, CompletedAt: *l.CompletedAt, Assignment: a})
		}
	}
	return out
}
