package dto

import (
	"time"

	"github.com/noah-isme/dz-manifest-api/internal/engine"
	"github.com/noah-isme/dz-manifest-api/internal/models"
)

// AssignRequest places a queued student on a load.
type AssignRequest struct {
	QueueEntryID      string `json:"queueEntryId" validate:"required"`
	InstructorID      string `json:"instructorId"`
	VideoInstructorID string `json:"videoInstructorId"`
}

// GroupMemberRequest picks instructors for one queued member of a group.
type GroupMemberRequest struct {
	QueueEntryID      string `json:"queueEntryId" validate:"required"`
	InstructorID      string `json:"instructorId"`
	VideoInstructorID string `json:"videoInstructorId"`
}

// AssignGroupRequest places every queued member of a group on a load at once.
type AssignGroupRequest struct {
	GroupID string               `json:"groupId" validate:"required"`
	Members []GroupMemberRequest `json:"members" validate:"dive"`
}

// MoveRequest moves an assignment or group to another load.
type MoveRequest struct {
	ToLoadID string `json:"toLoadId" validate:"required"`
}

// UpdateAssignmentRequest patches the editable fields of an assignment. Nil fields are kept.
type UpdateAssignmentRequest struct {
	InstructorID      *string `json:"instructorId"`
	VideoInstructorID *string `json:"videoInstructorId"`
	IsMissed          *bool   `json:"isMissed"`
	IsOffDay          *bool   `json:"isOffDay"`
}

// TransitionRequest advances a load through its lifecycle.
type TransitionRequest struct {
	Status models.LoadStatus `json:"status" validate:"required,oneof=building ready departed completed"`
}

// DelayRequest shifts a load's departure by whole minutes.
type DelayRequest struct {
	Minutes int `json:"minutes" validate:"required,min=-120,max=120"`
}

// CreateLoadRequest adds a building load at the end of the schedule.
type CreateLoadRequest struct {
	Capacity   int    `json:"capacity" validate:"omitempty,min=2,max=64"`
	AircraftID string `json:"aircraftId" validate:"omitempty,max=64"`
}

// ReorderLoadsRequest lists every building load id in the desired order.
type ReorderLoadsRequest struct {
	LoadIDs []string `json:"loadIds" validate:"required,min=1,dive,required"`
}

// ManifestResult is returned by every load mutation.
type ManifestResult struct {
	Load                *models.Load            `json:"load,omitempty"`
	SourceLoad          *models.Load            `json:"sourceLoad,omitempty"`
	Positions           []models.PositionChange `json:"positions,omitempty"`
	QueueCleanupPending bool                    `json:"queueCleanupPending"`
	Warnings            []string                `json:"warnings,omitempty"`
}

// CommandResponse pairs a mutation result with the history entry it produced.
type CommandResponse struct {
	Result *ManifestResult `json:"result"`
	Action *models.Action  `json:"action,omitempty"`
}

// AvailabilityResponse answers whether an instructor may take a load position.
type AvailabilityResponse struct {
	InstructorID          string `json:"instructorId"`
	Position              int    `json:"position"`
	Available             bool   `json:"available"`
	NextAvailablePosition *int   `json:"nextAvailablePosition,omitempty"`
}

// BoardLoad is one row of the countdown board.
type BoardLoad struct {
	Load           models.Load      `json:"load"`
	Countdown      engine.Countdown `json:"countdown"`
	SeatsUsed      int              `json:"seatsUsed"`
	SeatsAvailable int              `json:"seatsAvailable"`
}

// BoardSnapshot is an immutable view of the board at GeneratedAt.
type BoardSnapshot struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	Settings    models.ManifestSettings `json:"settings"`
	Loads       []BoardLoad             `json:"loads"`
}

// ReconcileReport lists what a reconciliation pass repaired.
type ReconcileReport struct {
	Reason               string             `json:"reason"`
	RemovedQueueEntries  []string           `json:"removedQueueEntries"`
	RemovedDuplicates    []DuplicateRemoval `json:"removedDuplicates"`
	RestoredQueueEntries []string           `json:"restoredQueueEntries"`
	CompletedAt          time.Time          `json:"completedAt"`
}

// DuplicateRemoval is a stale copy of an assignment dropped from a load.
type DuplicateRemoval struct {
	AssignmentID string `json:"assignmentId"`
	LoadID       string `json:"loadId"`
	KeptLoadID   string `json:"keptLoadId"`
}

// UpdateSettingsRequest replaces the runtime manifest settings.
type UpdateSettingsRequest struct {
	MinutesBetweenLoads  int `json:"minutesBetweenLoads" validate:"min=1,max=240"`
	InstructorCycleTime  int `json:"instructorCycleTime" validate:"min=0,max=600"`
	DefaultPlaneCapacity int `json:"defaultPlaneCapacity" validate:"min=2,max=64"`
}

// OpenPeriodRequest starts a new accounting period.
type OpenPeriodRequest struct {
	ID    string     `json:"id" validate:"omitempty,max=64"`
	Name  string     `json:"name" validate:"required,max=120"`
	Start *time.Time `json:"start"`
}

// StatementLink grants time-limited access to an archived period statement.
type StatementLink struct {
	PeriodID  string    `json:"periodId"`
	Token     string    `json:"token"`
	URL       string    `json:"url,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PeriodBalances lists totals for every instructor in a period.
type PeriodBalances struct {
	Period models.Period             `json:"period"`
	Totals []models.InstructorTotals `json:"totals"`
	Final  bool                      `json:"final"`
}
