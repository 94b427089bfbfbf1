package strategy

import (
	"context"
	"fmt"

	"Confluence/internal/domain/models"
)

const NameORB = "orb"

// ORBEvaluator trades breakouts of the opening range. A close beyond the
// range sized against ATR and confirmed by relative volume carries the
// highest win probability; moves back inside the range are ignored.
type ORBEvaluator struct {
	sizer *KellySizer
	rules RuleTable
}

func NewORBEvaluator(sizer *KellySizer) *ORBEvaluator {
	return &ORBEvaluator{
		sizer: sizer,
		rules: RuleTable{
			PhaseShifts: map[models.SessionPhase]PhaseShift{
				models.PhaseOpen:      {PShift: 0.05, BShift: 0.2},
				models.PhaseLunch:     {PShift: -0.10},
				models.PhasePowerHour: {PShift: -0.02},
			},
			MinRelVolume: 1.0,
		},
	}
}

func (e *ORBEvaluator) Name() string { return NameORB }

func (e *ORBEvaluator) Evaluate(_ context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) models.Signal {
	if snap.OpeningRange == nil || !snap.OpeningRange.Established {
		return models.NeutralSignal(NameORB, "opening range not established")
	}
	price, okP := snap.Indicator(models.IndPrice)
	atr, okA := snap.Indicator(models.IndATR14)
	if !okP || !okA || atr <= 0 || price <= 0 {
		return models.NeutralSignal(NameORB, "input defect: missing price or atr")
	}

	or := snap.OpeningRange
	var distance float64
	direction := 0
	switch {
	case price > or.High:
		distance = (price - or.High) / atr
		direction = 1
	case price < or.Low:
		distance = (or.Low - price) / atr
		direction = -1
	default:
		return models.NeutralSignal(NameORB, "price inside opening range")
	}

	// Conviction rises with breakout distance up to 1.5 ATR, then the move
	// is considered extended and p decays.
	p := 0.50 + 0.12*clamp(distance, 0, 1.5)
	if distance > 1.5 {
		p -= 0.08 * (distance - 1.5)
	}
	relVol := snap.IndicatorOr(models.IndRelVolume, 1)
	p += 0.04 * clamp(relVol-1, 0, 2)
	b := clamp(1.5+0.3*clamp(relVol-1, 0, 2), 0.5, 2.5)

	p, b, blocked, reason := e.rules.Adjust(clamp(p, 0, 1), b, snap)
	if blocked {
		return models.NeutralSignal(NameORB, reason)
	}
	p = clamp(p+historyShift(kc, NameORB), 0, 0.95)

	sized, raw := e.sizer.Size(p, b, snap.Phase)
	if sized == 0 {
		return models.NeutralSignal(NameORB, "negative expectancy after adjustments")
	}

	slider := sized * float64(direction)
	conf := clamp(0.45+0.2*clamp(distance, 0, 1.5), 0, 0.9)

	side := "above"
	if direction < 0 {
		side = "below"
	}
	return models.NewSignal(NameORB, slider, conf, raw,
		fmt.Sprintf("breakout %s range by %.2f ATR, rel vol %.2f, p=%.2f b=%.2f", side, distance, relVol, p, b))
}
