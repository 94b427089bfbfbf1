package strategy

import (
	"fmt"

	"Confluence/internal/domain/models"
)

// PhaseShift adjusts a strategy's probability and payoff estimates for a
// session phase before the Kelly formula is applied.
type PhaseShift struct {
	PShift float64
	BShift float64
}

// RuleTable is the data-driven adjustment table shared by all evaluators.
// New strategies supply their own table instead of branching code.
type RuleTable struct {
	PhaseShifts map[models.SessionPhase]PhaseShift

	// RunawayADX blocks the strategy entirely when trend strength exceeds
	// it. Zero disables the filter.
	RunawayADX float64

	// MinRelVolume degrades conviction when relative volume is below it.
	MinRelVolume float64
}

// Adjust applies phase shifts and regime filters to the raw (p, b) estimate.
// blocked=true means the rule table forces a no-trade for this snapshot.
func (rt RuleTable) Adjust(p, b float64, snap *models.MarketSnapshot) (ap, ab float64, blocked bool, reason string) {
	ap, ab = p, b

	if shift, ok := rt.PhaseShifts[snap.Phase]; ok {
		ap += shift.PShift
		ab += shift.BShift
	}

	if rt.RunawayADX > 0 {
		if adx, ok := snap.Indicator(models.IndADX); ok && adx >= rt.RunawayADX {
			return ap, ab, true, fmt.Sprintf("runaway trend: adx %.1f >= %.1f", adx, rt.RunawayADX)
		}
	}

	if rt.MinRelVolume > 0 {
		if rv, ok := snap.Indicator(models.IndRelVolume); ok && rv < rt.MinRelVolume {
			ap -= 0.05
		}
	}

	if ap < 0 {
		ap = 0
	}
	if ap > 1 {
		ap = 1
	}
	if ab < 0.1 {
		ab = 0.1
	}
	return ap, ab, false, ""
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
