package models

// Instructor is a roster member who can take students.
type Instructor struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	ClockedIn         bool     `json:"clockedIn" yaml:"clockedIn"`
	CanTandem         bool     `json:"canTandem" yaml:"canTandem"`
	CanAFF            bool     `json:"canAff" yaml:"canAff"`
	CanVideo          bool     `json:"canVideo" yaml:"canVideo"`
	TandemWeightLimit int      `json:"tandemWeightLimit,omitempty" yaml:"tandemWeightLimit"`
	AFFWeightLimit    int      `json:"affWeightLimit,omitempty" yaml:"affWeightLimit"`
	AFFLocked         bool     `json:"affLocked" yaml:"affLocked"`
	LockedStudentIDs  []string `json:"lockedStudentIds,omitempty" yaml:"lockedStudentIds"`
}

// LockedTo reports whether the AFF lock allows working with the student.
func (i Instructor) LockedTo(studentID string) bool {
	for _, id := range i.LockedStudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// InstructorSuggestion ranks a candidate instructor for a queued student.
type InstructorSuggestion struct {
	Instructor            Instructor `json:"instructor"`
	Balance               float64    `json:"balance"`
	NextAvailablePosition *int       `json:"nextAvailablePosition,omitempty"`
	Requested             bool       `json:"requested"`
}
