package engine

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

func TestRenumberPositionsClosesGaps(t *testing.T) {
	loads := []models.Load{
		load("a", models.LoadStatusBuilding, 2),
		load("b", models.LoadStatusBuilding, 5),
		load("c", models.LoadStatusBuilding, 9),
	}
	changes := RenumberPositions(loads)
	assert.Equal(t, []models.PositionChange{
		{LoadID: "a", From: 2, To: 1},
		{LoadID: "b", From: 5, To: 2},
		{LoadID: "c", From: 9, To: 3},
	}, changes)
}

func TestRenumberPositionsRespectsSortOrderAndLockedLoads(t *testing.T) {
	ready := load("r", models.LoadStatusReady, 1)
	departed := load("d", models.LoadStatusDeparted, 3)
	done := load("x", models.LoadStatusCompleted, 2)
	first := load("b1", models.LoadStatusBuilding, 7)
	first.SortOrder = intPtr(1)
	second := load("b2", models.LoadStatusBuilding, 4)
	second.SortOrder = intPtr(2)

	changes := RenumberPositions([]models.Load{second, ready, done, first, departed})
	// b2 already sits on the next free position.
	assert.Equal(t, []models.PositionChange{{LoadID: "b1", From: 7, To: 2}}, changes)
}

func TestRenumberPositionsContiguity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	statuses := []models.LoadStatus{
		models.LoadStatusBuilding,
		models.LoadStatusBuilding,
		models.LoadStatusReady,
		models.LoadStatusDeparted,
		models.LoadStatusCompleted,
	}
	for iter := 0; iter < 500; iter++ {
		n := rng.Intn(10) + 1
		loads := make([]models.Load, n)
		held := make(map[int]bool)
		for i := range loads {
			status := statuses[rng.Intn(len(statuses))]
			if iter%4 == 0 {
				status = models.LoadStatusBuilding
			}
			pos := rng.Intn(20) + 1
			if status == models.LoadStatusReady || status == models.LoadStatusDeparted {
				// Active non-building loads never share a position.
				for held[pos] {
					pos = rng.Intn(20) + 1
				}
				held[pos] = true
			}
			loads[i] = load(string(rune('a'+i)), status, pos)
			if rng.Intn(2) == 0 {
				loads[i].SortOrder = intPtr(rng.Intn(10))
			}
		}
		before := make(map[string]int, n)
		for _, l := range loads {
			before[l.ID] = l.Position
		}

		ApplyPositions(loads, RenumberPositions(loads))

		building := make([]int, 0, n)
		for _, l := range loads {
			if l.Status == models.LoadStatusBuilding {
				building = append(building, l.Position)
				continue
			}
			require.Equal(t, before[l.ID], l.Position, "%s load %s moved", l.Status, l.ID)
		}
		sort.Ints(building)

		want := make([]int, 0, len(building))
		for p := 1; len(want) < len(building); p++ {
			if !held[p] {
				want = append(want, p)
			}
		}
		require.Equal(t, want, building)
		if len(held) == 0 {
			for i, p := range building {
				require.Equal(t, i+1, p)
			}
		}
	}
}

func TestNextSortOrder(t *testing.T) {
	a := load("a", models.LoadStatusBuilding, 1)
	a.SortOrder = intPtr(4)
	assert.Equal(t, 5, NextSortOrder([]models.Load{a, load("b", models.LoadStatusBuilding, 2), load("r", models.LoadStatusReady, 9)}))
	assert.Equal(t, 1, NextSortOrder(nil))
}
