package strategy

import (
	"context"
	"fmt"

	"Confluence/internal/domain/models"
)

const NameMeanReversion = "mean_reversion"

// MeanReversionEvaluator fades stretched moves back toward VWAP. An RSI(2)
// extreme combined with a deep VWAP deviation (in ATR units) defines the
// setup; a runaway trend filter keeps it out of strong directional tape.
type MeanReversionEvaluator struct {
	sizer *KellySizer
	rules RuleTable

	oversold   float64
	overbought float64
	minStretch float64 // VWAP deviation in ATRs before fading
}

func NewMeanReversionEvaluator(sizer *KellySizer) *MeanReversionEvaluator {
	return &MeanReversionEvaluator{
		sizer: sizer,
		rules: RuleTable{
			PhaseShifts: map[models.SessionPhase]PhaseShift{
				models.PhaseOpen:      {PShift: -0.05},
				models.PhaseLunch:     {PShift: 0.05},
				models.PhasePreMarket: {PShift: -0.03},
			},
			RunawayADX: 35,
		},
		oversold:   10,
		overbought: 90,
		minStretch: 1.0,
	}
}

func (e *MeanReversionEvaluator) Name() string { return NameMeanReversion }

func (e *MeanReversionEvaluator) Evaluate(_ context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) models.Signal {
	price, okP := snap.Indicator(models.IndPrice)
	vwap, okV := snap.Indicator(models.IndVWAP)
	atr, okA := snap.Indicator(models.IndATR14)
	rsi2, okR := snap.Indicator(models.IndRSI2)
	if !okP || !okV || !okA || !okR || atr <= 0 || price <= 0 || vwap <= 0 {
		return models.NeutralSignal(NameMeanReversion, "input defect: missing price/vwap/atr/rsi")
	}
	if rsi2 < 0 || rsi2 > 100 {
		return models.NeutralSignal(NameMeanReversion,
			fmt.Sprintf("input defect: rsi_2 %.1f out of range", rsi2))
	}

	stretch := (price - vwap) / atr

	var direction int
	switch {
	case rsi2 <= e.oversold && stretch <= -e.minStretch:
		direction = 1 // stretched down, fade up
	case rsi2 >= e.overbought && stretch >= e.minStretch:
		direction = -1 // stretched up, fade down
	default:
		return models.NeutralSignal(NameMeanReversion, "no extreme: rsi and vwap stretch disagree")
	}

	depth := clamp(absf(stretch), e.minStretch, 3)

	// Deeper stretch raises p; payoff is the distance back to VWAP per unit
	// of continued-move risk, so b scales with depth too.
	p := clamp(0.54+0.05*(depth-e.minStretch), 0, 0.72)
	b := clamp(0.8+0.4*depth, 0.5, 2.2)

	p, b, blocked, reason := e.rules.Adjust(p, b, snap)
	if blocked {
		return models.NeutralSignal(NameMeanReversion, reason)
	}
	p = clamp(p+historyShift(kc, NameMeanReversion), 0, 0.95)

	sized, raw := e.sizer.Size(p, b, snap.Phase)
	if sized == 0 {
		return models.NeutralSignal(NameMeanReversion, "negative expectancy after adjustments")
	}

	slider := sized * float64(direction)
	conf := clamp(0.4+0.15*(depth-e.minStretch), 0, 0.8)

	return models.NewSignal(NameMeanReversion, slider, conf, raw,
		fmt.Sprintf("rsi_2 %.1f, vwap stretch %.2f ATR, p=%.2f b=%.2f", rsi2, stretch, p, b))
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
