package models

import "time"

// LoadStatus enumerates the lifecycle states of a load.
type LoadStatus string

const (
	LoadStatusBuilding  LoadStatus = "building"
	LoadStatusReady     LoadStatus = "ready"
	LoadStatusDeparted  LoadStatus = "departed"
	LoadStatusCompleted LoadStatus = "completed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s LoadStatus) Valid() bool {
	switch s {
	case LoadStatusBuilding, LoadStatusReady, LoadStatusDeparted, LoadStatusCompleted:
		return true
	}
	return false
}

// Finalized loads no longer take part in countdown ordering.
func (s LoadStatus) Finalized() bool {
	return s == LoadStatusDeparted || s == LoadStatusCompleted
}

// JumpType identifies the kind of student jump.
type JumpType string

const (
	JumpTypeTandem JumpType = "tandem"
	JumpTypeAFF    JumpType = "aff"
)

// Load is one aircraft departure.
type Load struct {
	ID                 string           `json:"id"`
	Status             LoadStatus       `json:"status"`
	Position           int              `json:"position"`
	SortOrder          *int             `json:"sortOrder,omitempty"`
	Capacity           int              `json:"capacity"`
	AircraftID         string           `json:"aircraftId,omitempty"`
	Assignments        []LoadAssignment `json:"assignments"`
	CountdownStartTime *time.Time       `json:"countdownStartTime,omitempty"`
	DelayMinutes       int              `json:"delayMinutes"`
	DepartedAt         *time.Time       `json:"departedAt,omitempty"`
	CompletedAt        *time.Time       `json:"completedAt,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// Clone returns a deep copy so snapshots never alias each other.
func (l Load) Clone() Load {
	out := l
	out.Assignments = append([]LoadAssignment(nil), l.Assignments...)
	if l.SortOrder != nil {
		v := *l.SortOrder
		out.SortOrder = &v
	}
	out.CountdownStartTime = cloneTime(l.CountdownStartTime)
	out.DepartedAt = cloneTime(l.DepartedAt)
	out.CompletedAt = cloneTime(l.CompletedAt)
	if out.Assignments == nil {
		out.Assignments = []LoadAssignment{}
	}
	return out
}

// IndexOf returns the index of the assignment with the provided id or -1.
func (l *Load) IndexOf(assignmentID string) int {
	for i := range l.Assignments {
		if l.Assignments[i].ID == assignmentID {
			return i
		}
	}
	return -1
}

// LoadAssignment pairs a student with instructors on a specific load.
type LoadAssignment struct {
	ID                     string    `json:"id"`
	StudentID              string    `json:"studentId"`
	StudentName            string    `json:"studentName,omitempty"`
	InstructorID           string    `json:"instructorId,omitempty"`
	VideoInstructorID      string    `json:"videoInstructorId,omitempty"`
	StudentWeight          int       `json:"studentWeight"`
	JumpType               JumpType  `json:"jumpType"`
	AFFLevel               int       `json:"affLevel,omitempty"`
	IsRequest              bool      `json:"isRequest"`
	RequestedInstructorID  string    `json:"requestedInstructorId,omitempty"`
	HasOutsideVideo        bool      `json:"hasOutsideVideo"`
	HasHandcam             bool      `json:"hasHandcam"`
	GroupID                string    `json:"groupId,omitempty"`
	OriginalQueueTimestamp time.Time `json:"originalQueueTimestamp"`
	PlacedAt               time.Time `json:"placedAt"`
	IsMissed               bool      `json:"isMissed,omitempty"`
	IsOffDay               bool      `json:"isOffDay,omitempty"`
}

// Seats is the number of aircraft slots the assignment occupies.
func (a LoadAssignment) Seats() int {
	if a.HasOutsideVideo {
		return 3
	}
	return 2
}

// QueueEntry returns the waiting-queue form of the assignment.
func (a LoadAssignment) QueueEntry() QueueEntry {
	return QueueEntry{
		ID:                    a.ID,
		StudentID:             a.StudentID,
		StudentName:           a.StudentName,
		StudentWeight:         a.StudentWeight,
		JumpType:              a.JumpType,
		AFFLevel:              a.AFFLevel,
		IsRequest:             a.IsRequest,
		RequestedInstructorID: a.RequestedInstructorID,
		HasOutsideVideo:       a.HasOutsideVideo,
		HasHandcam:            a.HasHandcam,
		GroupID:               a.GroupID,
		QueueTimestamp:        a.OriginalQueueTimestamp,
	}
}

// PositionChange records a renumbering of one load.
type PositionChange struct {
	LoadID string `json:"loadId"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
