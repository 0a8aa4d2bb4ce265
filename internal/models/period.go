package models

import "time"

// Period is the accounting window for balances and earnings.
type Period struct {
	ID            string                      `json:"id" db:"id"`
	Name          string                      `json:"name" db:"name"`
	Start         time.Time                   `json:"start" db:"start_at"`
	End           *time.Time                  `json:"end,omitempty" db:"end_at"`
	FinalBalances map[string]InstructorTotals `json:"finalBalances,omitempty" db:"-"`
	ClosedAt      *time.Time                  `json:"closedAt,omitempty" db:"closed_at"`
}

// Closed periods carry an immutable archival record.
func (p Period) Closed() bool {
	return p.ClosedAt != nil
}

// Contains reports whether ts falls inside the period window.
func (p Period) Contains(ts time.Time) bool {
	if ts.Before(p.Start) {
		return false
	}
	if p.End != nil && ts.After(*p.End) {
		return false
	}
	return true
}

// InstructorTotals holds balance and earnings for one instructor.
type InstructorTotals struct {
	InstructorID   string  `json:"instructorId" db:"instructor_id"`
	InstructorName string  `json:"instructorName,omitempty" db:"instructor_name"`
	Balance        float64 `json:"balance" db:"balance"`
	Earnings       float64 `json:"earnings" db:"earnings"`
	Jumps          int     `json:"jumps" db:"jumps"`
}

// AssignmentRecord is a flown (or missed) assignment taken from a completed load.
type AssignmentRecord struct {
	LoadID      string         `json:"loadId"`
	CompletedAt time.Time      `json:"completedAt"`
	Assignment  LoadAssignment `json:"assignment"`
}

// PeriodArchiveRow is a persisted final balance line for a closed period.
type PeriodArchiveRow struct {
	PeriodID string    `db:"period_id"`
	ClosedAt time.Time `db:"closed_at"`
	InstructorTotals
}
