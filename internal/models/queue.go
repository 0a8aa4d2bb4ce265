package models

import "time"

// QueueEntry is a student waiting to be placed on a load.
type QueueEntry struct {
	ID                    string    `json:"id" yaml:"id"`
	StudentID             string    `json:"studentId" yaml:"studentId"`
	StudentName           string    `json:"studentName,omitempty" yaml:"studentName"`
	StudentWeight         int       `json:"studentWeight" yaml:"studentWeight"`
	JumpType              JumpType  `json:"jumpType" yaml:"jumpType"`
	AFFLevel              int       `json:"affLevel,omitempty" yaml:"affLevel"`
	IsRequest             bool      `json:"isRequest" yaml:"isRequest"`
	RequestedInstructorID string    `json:"requestedInstructorId,omitempty" yaml:"requestedInstructorId"`
	HasOutsideVideo       bool      `json:"hasOutsideVideo" yaml:"hasOutsideVideo"`
	HasHandcam            bool      `json:"hasHandcam" yaml:"hasHandcam"`
	GroupID               string    `json:"groupId,omitempty" yaml:"groupId"`
	QueueTimestamp        time.Time `json:"queueTimestamp" yaml:"queueTimestamp"`
}

// Assignment converts the entry into a load assignment. The assignment keeps the entry id.
func (q QueueEntry) Assignment(instructorID, videoInstructorID string, placedAt time.Time) LoadAssignment {
	return LoadAssignment{
		ID:                     q.ID,
		StudentID:              q.StudentID,
		StudentName:            q.StudentName,
		InstructorID:           instructorID,
		VideoInstructorID:      videoInstructorID,
		StudentWeight:          q.StudentWeight,
		JumpType:               q.JumpType,
		AFFLevel:               q.AFFLevel,
		IsRequest:              q.IsRequest,
		RequestedInstructorID:  q.RequestedInstructorID,
		HasOutsideVideo:        q.HasOutsideVideo,
		HasHandcam:             q.HasHandcam,
		GroupID:                q.GroupID,
		OriginalQueueTimestamp: q.QueueTimestamp,
		PlacedAt:               placedAt,
	}
}

// Group links co-traveling students.
type Group struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	StudentIDs []string `json:"studentIds" yaml:"studentIds"`
}
