package engine

import (
	"sort"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

// RenumberPositions assigns building loads, ordered by sortOrder, the smallest
// positive positions not held by a ready or departed load. Those loads keep
// their position. Completed loads are ignored. Only changed loads are returned.
//
// Building positions are exactly 1..N only while no ready or departed load is
// active. Otherwise they skip the positions those loads hold, so every active
// position stays unique.
func RenumberPositions(loads []models.Load) []models.PositionChange {
	taken := make(map[int]struct{})
	building := make([]models.Load, 0, len(loads))
	for _, l := range loads {
		switch l.Status {
		case models.LoadStatusBuilding:
			building = append(building, l)
		case models.LoadStatusCompleted:
		default:
			taken[l.Position] = struct{}{}
		}
	}
	SortBuilding(building)

	changes := make([]models.PositionChange, 0)
	next := 1
	for _, l := range building {
		for {
			if _, held := taken[next]; !held {
				break
			}
			next++
		}
		if l.Position != next {
			changes = append(changes, models.PositionChange{LoadID: l.ID, From: l.Position, To: next})
		}
		next++
	}
	return changes
}

// SortBuilding orders loads by sortOrder, falling back to position and then id.
func SortBuilding(loads []models.Load) {
	sort.SliceStable(loads, func(i, j int) bool {
		ki, kj := sortKey(loads[i]), sortKey(loads[j])
		if ki != kj {
			return ki < kj
		}
		if loads[i].Position != loads[j].Position {
			return loads[i].Position < loads[j].Position
		}
		return loads[i].ID < loads[j].ID
	})
}

// SortByPosition orders loads by position, then id.
func SortByPosition(loads []models.Load) {
	sort.SliceStable(loads, func(i, j int) bool {
		if loads[i].Position != loads[j].Position {
			return loads[i].Position < loads[j].Position
		}
		return loads[i].ID < loads[j].ID
	})
}

// ApplyPositions writes the changes onto the matching loads in place.
func ApplyPositions(loads []models.Load, changes []models.PositionChange) {
	if len(changes) == 0 {
		return
	}
	byID := make(map[string]int, len(changes))
	for _, c := range changes {
		byID[c.LoadID] = c.To
	}
	for i := range loads {
		if pos, ok := byID[loads[i].ID]; ok {
			loads[i].Position = pos
		}
	}
}

// NextSortOrder returns a sortOrder placing a new load after every building load.
func NextSortOrder(loads []models.Load) int {
	max := 0
	for _, l := range loads {
		if l.Status != models.LoadStatusBuilding {
			continue
		}
		if k := sortKey(l); k > max {
			max = k
		}
	}
	return max + 1
}

// ActiveLoads drops completed loads.
func ActiveLoads(loads []models.Load) []models.Load {
	out := make([]models.Load, 0, len(loads))
	for _, l := range loads {
		if l.Status != models.LoadStatusCompleted {
			out = append(out, l)
		}
	}
	return out
}

func sortKey(l models.Load) int {
	if l.SortOrder != nil {
		return *l.SortOrder
	}
	return l.Position
}
