package strategy

import (
	"context"
	"fmt"

	"Confluence/internal/domain/models"
)

const NameSqueeze = "squeeze"

// SqueezeEvaluator trades volatility compression. While Bollinger bands sit
// inside the Keltner channel the market is coiling; the longer the squeeze
// has lasted, the higher the win probability assigned to the eventual
// momentum-directed break.
type SqueezeEvaluator struct {
	sizer *KellySizer
	rules RuleTable

	minBars int // squeeze bars required before sizing a position
}

func NewSqueezeEvaluator(sizer *KellySizer) *SqueezeEvaluator {
	return &SqueezeEvaluator{
		sizer: sizer,
		rules: RuleTable{
			PhaseShifts: map[models.SessionPhase]PhaseShift{
				models.PhaseOpen:      {PShift: 0.03},
				models.PhaseLunch:     {PShift: -0.05},
				models.PhasePowerHour: {PShift: 0.02},
			},
			MinRelVolume: 0.8,
		},
		minBars: 6,
	}
}

func (e *SqueezeEvaluator) Name() string { return NameSqueeze }

func (e *SqueezeEvaluator) Evaluate(_ context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) models.Signal {
	bbw, okB := snap.Indicator(models.IndBollingerWidth)
	kcw, okK := snap.Indicator(models.IndKeltnerWidth)
	if !okB || !okK || bbw <= 0 || kcw <= 0 {
		return models.NeutralSignal(NameSqueeze, "input defect: missing or invalid band widths")
	}

	momentum := snap.IndicatorOr(models.IndMomentum, 0)
	bars := snap.IndicatorOr(models.IndSqueezeBars, 0)

	squeezeOn := bbw < kcw
	if !squeezeOn {
		return models.NeutralSignal(NameSqueeze, "no compression: bands outside channel")
	}
	if bars < float64(e.minBars) {
		sig := models.NeutralSignal(NameSqueeze,
			fmt.Sprintf("squeeze building: %d/%d bars", int(bars), e.minBars))
		sig.Mode = "building"
		return sig
	}
	if momentum == 0 {
		return models.NeutralSignal(NameSqueeze, "squeeze mature but momentum flat")
	}

	// Longer compression raises p; tighter bands relative to channel raise b.
	p := clamp(0.52+0.005*clamp(bars, 0, 30), 0, 0.70)
	b := clamp(1.2+(1-bbw/kcw), 0.5, 2.5)

	p, b, blocked, reason := e.rules.Adjust(p, b, snap)
	if blocked {
		return models.NeutralSignal(NameSqueeze, reason)
	}
	p = clamp(p+historyShift(kc, NameSqueeze), 0, 0.95)

	sized, raw := e.sizer.Size(p, b, snap.Phase)
	if sized == 0 {
		return models.NeutralSignal(NameSqueeze, "negative expectancy after adjustments")
	}

	slider := sized
	if momentum < 0 {
		slider = -sized
	}

	conf := clamp(0.4+0.01*bars, 0, 0.85)
	sig := models.NewSignal(NameSqueeze, slider, conf, raw,
		fmt.Sprintf("squeeze fired after %d bars, momentum %.2f, p=%.2f b=%.2f", int(bars), momentum, p, b))
	sig.Mode = "fired"
	return sig
}
