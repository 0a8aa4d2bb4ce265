package engine

import (
	"fmt"
	"time"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

// CountdownState classifies what the board shows for a load.
type CountdownState string

const (
	CountdownBuilding  CountdownState = "building"
	CountdownWaiting   CountdownState = "waiting"
	CountdownReady     CountdownState = "ready"
	CountdownRunning   CountdownState = "counting"
	CountdownClear     CountdownState = "clear"
	CountdownDeparted  CountdownState = "departed"
	CountdownCompleted CountdownState = "completed"
)

// LabelClearToDepart is shown when the anchor countdown reaches zero.
const LabelClearToDepart = "clear to depart"

// Countdown is the derived display value of one load.
type Countdown struct {
	LoadID           string         `json:"loadId"`
	SecondsRemaining *int           `json:"secondsRemaining,omitempty"`
	Label            string         `json:"label"`
	State            CountdownState `json:"state"`
}

// Anchor returns the first ready load by position among non-finalized loads.
func Anchor(loads []models.Load) (models.Load, bool) {
	var anchor models.Load
	found := false
	for _, l := range loads {
		if l.Status != models.LoadStatusReady {
			continue
		}
		if !found || l.Position < anchor.Position || (l.Position == anchor.Position && l.ID < anchor.ID) {
			anchor, found = l, true
		}
	}
	return anchor, found
}

// ComputeCountdown derives the countdown of load against the active load set.
// It only depends on its arguments.
func ComputeCountdown(load models.Load, activeLoads []models.Load, minutesBetweenLoads int, now time.Time) Countdown {
	out := Countdown{LoadID: load.ID}
	switch load.Status {
	case models.LoadStatusBuilding:
		out.Label, out.State = "building", CountdownBuilding
		return out
	case models.LoadStatusDeparted:
		out.Label, out.State = "departed", CountdownDeparted
		return out
	case models.LoadStatusCompleted:
		out.Label, out.State = "completed", CountdownCompleted
		return out
	}

	if pred, ok := firstBuildingPredecessor(load, activeLoads); ok {
		out.Label, out.State = waitingOn(pred.Position), CountdownWaiting
		return out
	}

	anchor, ok := Anchor(withLoad(activeLoads, load))
	if !ok || anchor.ID == load.ID {
		if load.CountdownStartTime == nil {
			out.Label, out.State = "ready", CountdownReady
			return out
		}
		secs := remainingSeconds(load, minutesBetweenLoads, now)
		out.SecondsRemaining = &secs
		if secs == 0 {
			out.Label, out.State = LabelClearToDepart, CountdownClear
			return out
		}
		out.Label, out.State = FormatClock(secs), CountdownRunning
		return out
	}

	out.Label, out.State = waitingOn(anchor.Position), CountdownWaiting
	if anchor.CountdownStartTime == nil || load.CountdownStartTime == nil {
		return out
	}
	secs := remainingSeconds(load, minutesBetweenLoads, now)
	out.SecondsRemaining = &secs
	if secs > 0 {
		out.Label, out.State = FormatClock(secs), CountdownRunning
	}
	return out
}

// ComputeBoard derives countdowns for every load in position order.
func ComputeBoard(loads []models.Load, minutesBetweenLoads int, now time.Time) []Countdown {
	active := ActiveLoads(loads)
	out := make([]Countdown, 0, len(loads))
	for _, l := range loads {
		out = append(out, ComputeCountdown(l, active, minutesBetweenLoads, now))
	}
	return out
}

// FormatClock renders seconds as mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func remainingSeconds(load models.Load, minutesBetweenLoads int, now time.Time) int {
	interval := time.Duration(minutesBetweenLoads+load.DelayMinutes) * time.Minute
	remaining := load.CountdownStartTime.Add(interval).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

func firstBuildingPredecessor(load models.Load, loads []models.Load) (models.Load, bool) {
	var first models.Load
	found := false
	for _, l := range loads {
		if l.ID == load.ID || l.Status != models.LoadStatusBuilding || l.Position >= load.Position {
			continue
		}
		if !found || l.Position < first.Position {
			first, found = l, true
		}
	}
	return first, found
}

func withLoad(loads []models.Load, load models.Load) []models.Load {
	for _, l := range loads {
		if l.ID == load.ID {
			return loads
		}
	}
	return append(append([]models.Load(nil), loads...), load)
}

func waitingOn(position int) string {
	return fmt.Sprintf("waiting on load #%d", position)
}
