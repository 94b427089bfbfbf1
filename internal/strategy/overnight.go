package strategy

import (
	"context"
	"fmt"

	"Confluence/internal/domain/models"
)

const NameOvernight = "overnight"

// OvernightEvaluator trades extended-hours positioning against the overnight
// range. It is only active outside regular hours; during the regular session
// it stays neutral and lets the intraday strategies speak.
type OvernightEvaluator struct {
	sizer *KellySizer
	rules RuleTable
}

func NewOvernightEvaluator(sizer *KellySizer) *OvernightEvaluator {
	return &OvernightEvaluator{
		sizer: sizer,
		rules: RuleTable{
			PhaseShifts: map[models.SessionPhase]PhaseShift{
				models.PhasePreMarket:   {PShift: 0.02},
				models.PhaseAfterMarket: {PShift: -0.02},
			},
			MinRelVolume: 0.5,
		},
	}
}

func (e *OvernightEvaluator) Name() string { return NameOvernight }

func (e *OvernightEvaluator) activePhase(phase models.SessionPhase) bool {
	switch phase {
	case models.PhasePreMarket, models.PhaseAfterMarket, models.PhaseOvernight:
		return true
	}
	return false
}

func (e *OvernightEvaluator) Evaluate(_ context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) models.Signal {
	if !e.activePhase(snap.Phase) {
		return models.NeutralSignal(NameOvernight, "inactive during regular session")
	}
	if snap.OvernightRange == nil || snap.OvernightRange.High <= snap.OvernightRange.Low {
		return models.NeutralSignal(NameOvernight, "input defect: no overnight range")
	}
	price, okP := snap.Indicator(models.IndPrice)
	if !okP || price <= 0 {
		return models.NeutralSignal(NameOvernight, "input defect: missing price")
	}

	rng := snap.OvernightRange
	width := rng.High - rng.Low
	// Position of price within the overnight range, 0 = low, 1 = high.
	pos := (price - rng.Low) / width

	var direction int
	var edge float64
	switch {
	case pos > 1:
		direction = 1
		edge = pos - 1
	case pos < 0:
		direction = -1
		edge = -pos
	case pos >= 0.85:
		direction = 1
		edge = (pos - 0.85) / 0.15 * 0.3
	case pos <= 0.15:
		direction = -1
		edge = (0.15 - pos) / 0.15 * 0.3
	default:
		return models.NeutralSignal(NameOvernight, "price mid-range overnight")
	}

	p := clamp(0.50+0.10*clamp(edge, 0, 1), 0, 0.65)
	b := clamp(1.0+0.5*clamp(edge, 0, 1), 0.5, 1.8)

	p, b, blocked, reason := e.rules.Adjust(p, b, snap)
	if blocked {
		return models.NeutralSignal(NameOvernight, reason)
	}
	p = clamp(p+historyShift(kc, NameOvernight), 0, 0.95)

	sized, raw := e.sizer.Size(p, b, snap.Phase)
	if sized == 0 {
		return models.NeutralSignal(NameOvernight, "negative expectancy after adjustments")
	}

	slider := sized * float64(direction)
	conf := clamp(0.35+0.3*clamp(edge, 0, 1), 0, 0.7)

	return models.NewSignal(NameOvernight, slider, conf, raw,
		fmt.Sprintf("overnight range pos %.2f, edge %.2f, p=%.2f b=%.2f", pos, edge, p, b))
}
