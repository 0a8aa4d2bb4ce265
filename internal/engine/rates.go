package engine

import (
	"math"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

// OffDayMultiplier scales balance credit for jumps worked outside the normal schedule.
const OffDayMultiplier = 1.2

// WeightTier is a tandem surcharge applied above a student weight in pounds.
type WeightTier struct {
	Over      int     `json:"over"`
	Surcharge float64 `json:"surcharge"`
}

// RateTable prices a single assignment.
type RateTable struct {
	TandemBase  float64         `json:"tandemBase"`
	WeightTiers []WeightTier    `json:"weightTiers"`
	HandcamFee  float64         `json:"handcamFee"`
	AFFLevels   map[int]float64 `json:"affLevels"`
	AFFDefault  float64         `json:"affDefault"`
	VideoFee    float64         `json:"videoFee"`
}

// DefaultRates is the fixed pay table.
var DefaultRates = RateTable{
	TandemBase: 40,
	WeightTiers: []WeightTier{
		{Over: 200, Surcharge: 5},
		{Over: 220, Surcharge: 10},
		{Over: 240, Surcharge: 15},
	},
	HandcamFee: 10,
	AFFLevels: map[int]float64{
		1: 60,
		2: 50, 3: 50, 4: 50,
		5: 45, 6: 45, 7: 45,
	},
	AFFDefault: 45,
	VideoFee:   30,
}

// WeightSurcharge returns the surcharge of the highest tier the weight exceeds.
func (r RateTable) WeightSurcharge(weight int) float64 {
	surcharge := 0.0
	over := math.MinInt
	for _, tier := range r.WeightTiers {
		if weight > tier.Over && tier.Over > over {
			surcharge, over = tier.Surcharge, tier.Over
		}
	}
	return surcharge
}

// AssignmentPay prices the primary-instructor role of an assignment. Missed jumps pay 0.
func AssignmentPay(a models.LoadAssignment, rates RateTable) float64 {
	if a.IsMissed {
		return 0
	}
	switch a.JumpType {
	case models.JumpTypeTandem:
		pay := rates.TandemBase + rates.WeightSurcharge(a.StudentWeight)
		if a.HasHandcam {
			pay += rates.HandcamFee
		}
		return pay
	case models.JumpTypeAFF:
		if pay, ok := rates.AFFLevels[a.AFFLevel]; ok {
			return pay
		}
		return rates.AFFDefault
	}
	return 0
}

// VideoPay prices the outside-video role of an assignment.
func VideoPay(a models.LoadAssignment, rates RateTable) float64 {
	if a.IsMissed || a.VideoInstructorID == "" {
		return 0
	}
	return rates.VideoFee
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
