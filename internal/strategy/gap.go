package strategy

import (
	"context"
	"fmt"

	"Confluence/internal/domain/models"
)

const NameGap = "gap"

// Gap strategy modes: a large gap with volume tends to continue ("go"), a
// modest gap without participation tends to close ("fill").
const (
	GapModeGo   = "go"
	GapModeFill = "fill"
)

// GapEvaluator trades the overnight gap. The gap-to-ATR ratio decides the
// variant: beyond the go threshold it joins the gap direction, below the
// fill threshold it fades the gap toward the prior close.
type GapEvaluator struct {
	sizer *KellySizer
	rules RuleTable

	goRatio   float64 // gap/ATR at or above this continues
	fillRatio float64 // gap/ATR at or below this fades
}

func NewGapEvaluator(sizer *KellySizer) *GapEvaluator {
	return &GapEvaluator{
		sizer: sizer,
		rules: RuleTable{
			PhaseShifts: map[models.SessionPhase]PhaseShift{
				models.PhasePreMarket: {PShift: -0.04},
				models.PhaseOpen:      {PShift: 0.04, BShift: 0.2},
				models.PhaseLunch:     {PShift: -0.10},
			},
			MinRelVolume: 0.9,
		},
		goRatio:   1.5,
		fillRatio: 0.8,
	}
}

func (e *GapEvaluator) Name() string { return NameGap }

func (e *GapEvaluator) Evaluate(_ context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) models.Signal {
	if snap.Gap == nil || snap.Gap.PrevClose <= 0 {
		return models.NeutralSignal(NameGap, "no gap context")
	}
	atr, okA := snap.Indicator(models.IndATR14)
	if !okA || atr <= 0 {
		return models.NeutralSignal(NameGap, "input defect: missing atr")
	}

	gapAbs := absf(snap.Gap.OpenPrice - snap.Gap.PrevClose)
	ratio := gapAbs / atr
	gapUp := snap.Gap.OpenPrice > snap.Gap.PrevClose
	relVol := snap.IndicatorOr(models.IndRelVolume, 1)

	if gapAbs == 0 || absf(snap.Gap.GapPct) < 0.2 {
		return models.NeutralSignal(NameGap, "gap too small to trade")
	}

	var mode string
	var direction int
	var p, b float64

	switch {
	case ratio >= e.goRatio && relVol >= 1.2:
		// Momentum continuation in the gap direction.
		mode = GapModeGo
		direction = 1
		if !gapUp {
			direction = -1
		}
		p = clamp(0.52+0.06*clamp(ratio-e.goRatio, 0, 2), 0, 0.70)
		b = clamp(1.6+0.2*clamp(relVol-1.2, 0, 2), 0.5, 2.5)
	case ratio <= e.fillRatio:
		// Fade back toward the prior close.
		mode = GapModeFill
		direction = -1
		if !gapUp {
			direction = 1
		}
		p = clamp(0.56+0.08*(e.fillRatio-ratio), 0, 0.72)
		b = clamp(0.9+0.5*ratio, 0.5, 1.8)
	default:
		return models.NeutralSignal(NameGap,
			fmt.Sprintf("gap %.2f ATR in no-trade band", ratio))
	}

	p, b, blocked, reason := e.rules.Adjust(p, b, snap)
	if blocked {
		return models.NeutralSignal(NameGap, reason)
	}
	p = clamp(p+historyShift(kc, NameGap), 0, 0.95)

	sized, raw := e.sizer.Size(p, b, snap.Phase)
	if sized == 0 {
		return models.NeutralSignal(NameGap, "negative expectancy after adjustments")
	}

	slider := sized * float64(direction)
	conf := clamp(0.4+0.1*ratio, 0, 0.85)

	sig := models.NewSignal(NameGap, slider, conf, raw,
		fmt.Sprintf("gap %.2f%% (%.2f ATR) %s, rel vol %.2f, p=%.2f b=%.2f",
			snap.Gap.GapPct, ratio, mode, relVol, p, b))
	sig.Mode = mode
	return sig
}
