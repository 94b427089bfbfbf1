package synthesis

import (
	"fmt"
	"math"

	"Confluence/internal/domain/models"
	"Confluence/internal/strategy"
)

// DefaultBaseWeights returns the static per-strategy weights. They sum to 1.
func DefaultBaseWeights() map[string]float64 {
	return map[string]float64{
		strategy.NameSqueeze:       0.20,
		strategy.NameORB:           0.25,
		strategy.NameMeanReversion: 0.20,
		strategy.NameGap:           0.15,
		strategy.NameOvernight:     0.20,
	}
}

// ValidateWeights checks that a weight table is non-negative and sums to 1.
func ValidateWeights(weights map[string]float64) error {
	var sum float64
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("weight %s is negative: %v", name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("weights sum to %v, want 1.0", sum)
	}
	return nil
}

// WeightTable resolves per-strategy weights with session-phase shifts.
// Shifts reallocate weight toward the strategies that historically carry
// each window (breakouts at the open, fades over lunch); the result is
// renormalized so it always sums to 1.
type WeightTable struct {
	base map[string]float64
}

// NewWeightTable builds a table from configured base weights; an empty map
// falls back to the defaults.
func NewWeightTable(base map[string]float64) (*WeightTable, error) {
	if len(base) == 0 {
		base = DefaultBaseWeights()
	}
	if err := ValidateWeights(base); err != nil {
		return nil, fmt.Errorf("base weights: %w", err)
	}
	return &WeightTable{base: base}, nil
}

// phaseShifts reallocate weight by session window. Values are additive and
// applied before renormalization.
var phaseShifts = map[models.SessionPhase]map[string]float64{
	models.PhaseOpen: {
		strategy.NameORB:           0.10,
		strategy.NameGap:           0.05,
		strategy.NameMeanReversion: -0.05,
		strategy.NameOvernight:     -0.10,
	},
	models.PhaseLunch: {
		strategy.NameMeanReversion: 0.10,
		strategy.NameORB:           -0.05,
		strategy.NameGap:           -0.05,
	},
	models.PhasePowerHour: {
		strategy.NameSqueeze:   0.05,
		strategy.NameORB:       0.05,
		strategy.NameGap:       -0.05,
		strategy.NameOvernight: -0.05,
	},
	models.PhasePreMarket: {
		strategy.NameOvernight: 0.10,
		strategy.NameGap:       0.05,
		strategy.NameORB:       -0.15,
	},
	models.PhaseAfterMarket: {
		strategy.NameOvernight: 0.15,
		strategy.NameORB:       -0.10,
		strategy.NameGap:       -0.05,
	},
	models.PhaseOvernight: {
		strategy.NameOvernight: 0.20,
		strategy.NameORB:       -0.15,
		strategy.NameSqueeze:   -0.05,
	},
}

// ForPhase returns the phase-adjusted weights, renormalized to sum 1.
func (wt *WeightTable) ForPhase(phase models.SessionPhase) map[string]float64 {
	out := make(map[string]float64, len(wt.base))
	for name, w := range wt.base {
		out[name] = w
	}

	if shifts, ok := phaseShifts[phase]; ok {
		for name, d := range shifts {
			if _, known := out[name]; known {
				out[name] += d
			}
		}
	}

	var sum float64
	for name, w := range out {
		if w < 0 {
			out[name] = 0
			continue
		}
		sum += w
	}
	if sum <= 0 {
		return wt.base
	}
	for name := range out {
		out[name] /= sum
	}
	return out
}
