package models

import "time"

// CommandKind tags the mutation a Command performs.
type CommandKind string

const (
	CommandAssign           CommandKind = "assign"
	CommandReturnToQueue    CommandKind = "return_to_queue"
	CommandMove             CommandKind = "move"
	CommandUpdateAssignment CommandKind = "update_assignment"
	CommandTransition       CommandKind = "transition"
	CommandDelay            CommandKind = "delay"
	CommandCreateLoad       CommandKind = "create_load"
	CommandDeleteLoad       CommandKind = "delete_load"
	CommandReorder          CommandKind = "reorder"
)

// Placement is an assignment together with its index on the load it enters or leaves.
// For moves, Source is the assignment as it sat on the source load at SourceIndex.
type Placement struct {
	Assignment  LoadAssignment  `json:"assignment"`
	Index       int             `json:"index"`
	Source      *LoadAssignment `json:"source,omitempty"`
	SourceIndex int             `json:"sourceIndex,omitempty"`
}

// AssignmentFields are the operator-editable parts of an assignment.
type AssignmentFields struct {
	InstructorID      string `json:"instructorId,omitempty"`
	VideoInstructorID string `json:"videoInstructorId,omitempty"`
	IsMissed          bool   `json:"isMissed"`
	IsOffDay          bool   `json:"isOffDay"`
}

// FieldsOf extracts the editable fields of an assignment.
func FieldsOf(a LoadAssignment) AssignmentFields {
	return AssignmentFields{
		InstructorID:      a.InstructorID,
		VideoInstructorID: a.VideoInstructorID,
		IsMissed:          a.IsMissed,
		IsOffDay:          a.IsOffDay,
	}
}

// AssignmentPatch changes editable fields of one assignment.
type AssignmentPatch struct {
	AssignmentID string           `json:"assignmentId"`
	Before       AssignmentFields `json:"before"`
	After        AssignmentFields `json:"after"`
}

// LoadState is the lifecycle portion of a load.
type LoadState struct {
	Status             LoadStatus `json:"status"`
	CountdownStartTime *time.Time `json:"countdownStartTime,omitempty"`
	DepartedAt         *time.Time `json:"departedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// StateOf extracts the lifecycle portion of a load.
func StateOf(l Load) LoadState {
	return LoadState{
		Status:             l.Status,
		CountdownStartTime: cloneTime(l.CountdownStartTime),
		DepartedAt:         cloneTime(l.DepartedAt),
		CompletedAt:        cloneTime(l.CompletedAt),
	}
}

// StateChange moves one load between lifecycle states.
type StateChange struct {
	LoadID string    `json:"loadId"`
	Before LoadState `json:"before"`
	After  LoadState `json:"after"`
}

// SortOrderChange records a sortOrder edit on a building load.
type SortOrderChange struct {
	LoadID string `json:"loadId"`
	From   *int   `json:"from,omitempty"`
	To     *int   `json:"to,omitempty"`
}

// Command is a replayable mutation. Every command has an exact inverse (see Inverse).
type Command struct {
	Kind        CommandKind       `json:"kind"`
	LoadID      string            `json:"loadId,omitempty"`
	FromLoadID  string            `json:"fromLoadId,omitempty"`
	Placements  []Placement       `json:"placements,omitempty"`
	Patch       *AssignmentPatch  `json:"patch,omitempty"`
	States      []StateChange     `json:"states,omitempty"`
	Delay       int               `json:"delay,omitempty"`
	Load        *Load             `json:"load,omitempty"`
	Positions   []PositionChange  `json:"positions,omitempty"`
	SortOrders  []SortOrderChange `json:"sortOrders,omitempty"`
	Description string            `json:"description"`
}

// Inverse returns the command that undoes c.
func (c Command) Inverse() Command {
	inv := Command{
		Kind:        c.Kind,
		LoadID:      c.LoadID,
		FromLoadID:  c.FromLoadID,
		Positions:   invertPositions(c.Positions),
		Description: "undo " + c.Description,
	}
	switch c.Kind {
	case CommandAssign:
		inv.Kind = CommandReturnToQueue
		inv.Placements = clonePlacements(c.Placements)
	case CommandReturnToQueue:
		inv.Kind = CommandAssign
		inv.Placements = clonePlacements(c.Placements)
	case CommandMove:
		inv.LoadID, inv.FromLoadID = c.FromLoadID, c.LoadID
		inv.Placements = make([]Placement, len(c.Placements))
		for i, p := range c.Placements {
			entered := p.Assignment
			left := entered
			if p.Source != nil {
				left = *p.Source
			}
			inv.Placements[i] = Placement{Assignment: left, Index: p.SourceIndex, Source: &entered, SourceIndex: p.Index}
		}
	case CommandUpdateAssignment:
		if c.Patch != nil {
			inv.Patch = &AssignmentPatch{AssignmentID: c.Patch.AssignmentID, Before: c.Patch.After, After: c.Patch.Before}
		}
	case CommandTransition:
		inv.States = invertStates(c.States)
	case CommandDelay:
		inv.Delay = -c.Delay
	case CommandCreateLoad, CommandDeleteLoad:
		if c.Kind == CommandCreateLoad {
			inv.Kind = CommandDeleteLoad
		} else {
			inv.Kind = CommandCreateLoad
		}
		if c.Load != nil {
			snapshot := c.Load.Clone()
			inv.Load = &snapshot
		}
		inv.States = invertStates(c.States)
	case CommandReorder:
		inv.SortOrders = make([]SortOrderChange, len(c.SortOrders))
		for i, change := range c.SortOrders {
			inv.SortOrders[i] = SortOrderChange{LoadID: change.LoadID, From: change.To, To: change.From}
		}
	}
	return inv
}

func clonePlacements(in []Placement) []Placement {
	out := make([]Placement, len(in))
	for i, p := range in {
		out[i] = p
		if p.Source != nil {
			src := *p.Source
			out[i].Source = &src
		}
	}
	return out
}

func invertStates(in []StateChange) []StateChange {
	if len(in) == 0 {
		return nil
	}
	out := make([]StateChange, len(in))
	for i, change := range in {
		out[i] = StateChange{LoadID: change.LoadID, Before: change.After, After: change.Before}
	}
	return out
}

func invertPositions(in []PositionChange) []PositionChange {
	if len(in) == 0 {
		return nil
	}
	out := make([]PositionChange, len(in))
	for i, change := range in {
		out[i] = PositionChange{LoadID: change.LoadID, From: change.To, To: change.From}
	}
	return out
}

// Action is an entry in the undo/redo history.
type Action struct {
	ID          string      `json:"id"`
	Type        CommandKind `json:"type"`
	Description string      `json:"description"`
	Actor       string      `json:"actor,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Command     Command     `json:"command"`
}

// HistoryView is the client-facing state of the history stack.
type HistoryView struct {
	Entries []Action `json:"entries"`
	Cursor  int      `json:"cursor"`
	CanUndo bool     `json:"canUndo"`
	CanRedo bool     `json:"canRedo"`
}
