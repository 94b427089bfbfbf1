package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
)

func snapshot(phase models.SessionPhase, ind map[string]float64) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:     "SPY",
		Timestamp:  time.Now(),
		Phase:      phase,
		Indicators: ind,
	}
}

func TestSqueezeNeutralOnMissingWidths(t *testing.T) {
	ev := NewSqueezeEvaluator(NewKellySizer(nil))
	sig := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, map[string]float64{
		models.IndPrice: 100,
	}), nil)

	assert.Equal(t, models.DirectionNeutral, sig.Direction)
	assert.Zero(t, sig.Slider)
	assert.Contains(t, sig.Rationale, "input defect")
}

func TestSqueezeFiresWithMomentumDirection(t *testing.T) {
	ev := NewSqueezeEvaluator(NewKellySizer(nil))
	sig := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, map[string]float64{
		models.IndBollingerWidth: 0.8,
		models.IndKeltnerWidth:   1.2,
		models.IndSqueezeBars:    12,
		models.IndMomentum:       -0.5,
		models.IndRelVolume:      1.1,
	}), nil)

	require.NoError(t, sig.Validate())
	assert.Equal(t, models.DirectionBearish, sig.Direction)
	assert.Negative(t, sig.Slider)
	assert.Equal(t, "fired", sig.Mode)
	assert.Positive(t, sig.KellyFraction)
}

func TestSqueezeBuildingStaysNeutral(t *testing.T) {
	ev := NewSqueezeEvaluator(NewKellySizer(nil))
	sig := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, map[string]float64{
		models.IndBollingerWidth: 0.8,
		models.IndKeltnerWidth:   1.2,
		models.IndSqueezeBars:    3,
		models.IndMomentum:       0.4,
	}), nil)

	assert.Zero(t, sig.Slider)
	assert.Equal(t, "building", sig.Mode)
}

func TestORBInsideRangeNeutral(t *testing.T) {
	ev := NewORBEvaluator(NewKellySizer(nil))
	snap := snapshot(models.PhaseOpen, map[string]float64{
		models.IndPrice: 100,
		models.IndATR14: 2,
	})
	snap.OpeningRange = &models.OpeningRange{High: 101, Low: 99, Established: true}

	sig := ev.Evaluate(context.Background(), snap, nil)
	assert.Zero(t, sig.Slider)
}

func TestORBBreakoutBullish(t *testing.T) {
	ev := NewORBEvaluator(NewKellySizer(nil))
	snap := snapshot(models.PhaseOpen, map[string]float64{
		models.IndPrice:     103,
		models.IndATR14:     2,
		models.IndRelVolume: 1.5,
	})
	snap.OpeningRange = &models.OpeningRange{High: 101, Low: 99, Established: true}

	sig := ev.Evaluate(context.Background(), snap, nil)
	require.NoError(t, sig.Validate())
	assert.Equal(t, models.DirectionBullish, sig.Direction)
	assert.Positive(t, sig.Slider)
	assert.LessOrEqual(t, sig.Slider, 0.5, "open phase cap bounds the slider")
}

func TestORBNoRangeNeutral(t *testing.T) {
	ev := NewORBEvaluator(NewKellySizer(nil))
	sig := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, map[string]float64{
		models.IndPrice: 103,
		models.IndATR14: 2,
	}), nil)
	assert.Zero(t, sig.Slider)
	assert.Contains(t, sig.Rationale, "not established")
}

func TestMeanReversionFadesOversold(t *testing.T) {
	ev := NewMeanReversionEvaluator(NewKellySizer(nil))
	sig := ev.Evaluate(context.Background(), snapshot(models.PhaseLunch, map[string]float64{
		models.IndPrice: 96,
		models.IndVWAP:  100,
		models.IndATR14: 2,
		models.IndRSI2:  4,
		models.IndADX:   20,
	}), nil)

	require.NoError(t, sig.Validate())
	assert.Equal(t, models.DirectionBullish, sig.Direction)
	assert.Positive(t, sig.Slider)
}

func TestMeanReversionBlockedByRunawayTrend(t *testing.T) {
	ev := NewMeanReversionEvaluator(NewKellySizer(nil))
	sig := ev.Evaluate(context.Background(), snapshot(models.PhaseLunch, map[string]float64{
		models.IndPrice: 96,
		models.IndVWAP:  100,
		models.IndATR14: 2,
		models.IndRSI2:  4,
		models.IndADX:   45,
	}), nil)

	assert.Zero(t, sig.Slider)
	assert.Contains(t, sig.Rationale, "runaway trend")
}

func TestMeanReversionRejectsOutOfRangeRSI(t *testing.T) {
	ev := NewMeanReversionEvaluator(NewKellySizer(nil))
	sig := ev.Evaluate(context.Background(), snapshot(models.PhaseLunch, map[string]float64{
		models.IndPrice: 96,
		models.IndVWAP:  100,
		models.IndATR14: 2,
		models.IndRSI2:  140,
	}), nil)

	assert.Zero(t, sig.Slider)
	assert.Contains(t, sig.Rationale, "input defect")
}

func TestGapGoContinuation(t *testing.T) {
	ev := NewGapEvaluator(NewKellySizer(nil))
	snap := snapshot(models.PhaseOpen, map[string]float64{
		models.IndATR14:     2,
		models.IndRelVolume: 1.6,
	})
	snap.Gap = &models.GapContext{PrevClose: 100, OpenPrice: 104, GapPct: 4}

	sig := ev.Evaluate(context.Background(), snap, nil)
	require.NoError(t, sig.Validate())
	assert.Equal(t, GapModeGo, sig.Mode)
	assert.Positive(t, sig.Slider)
}

func TestGapFillFade(t *testing.T) {
	ev := NewGapEvaluator(NewKellySizer(nil))
	snap := snapshot(models.PhaseOpen, map[string]float64{
		models.IndATR14:     2,
		models.IndRelVolume: 1.0,
	})
	snap.Gap = &models.GapContext{PrevClose: 100, OpenPrice: 101, GapPct: 1}

	sig := ev.Evaluate(context.Background(), snap, nil)
	require.NoError(t, sig.Validate())
	assert.Equal(t, GapModeFill, sig.Mode)
	assert.Negative(t, sig.Slider, "gap up fill fades short")
}

func TestOvernightInactiveDuringRegularSession(t *testing.T) {
	ev := NewOvernightEvaluator(NewKellySizer(nil))
	snap := snapshot(models.PhaseOpen, map[string]float64{models.IndPrice: 100})
	snap.OvernightRange = &models.OvernightRange{High: 102, Low: 98}

	sig := ev.Evaluate(context.Background(), snap, nil)
	assert.Zero(t, sig.Slider)
	assert.Contains(t, sig.Rationale, "inactive")
}

func TestOvernightBreakAboveRange(t *testing.T) {
	ev := NewOvernightEvaluator(NewKellySizer(nil))
	snap := snapshot(models.PhasePreMarket, map[string]float64{
		models.IndPrice:     103,
		models.IndRelVolume: 0.9,
	})
	snap.OvernightRange = &models.OvernightRange{High: 102, Low: 98}

	sig := ev.Evaluate(context.Background(), snap, nil)
	require.NoError(t, sig.Validate())
	assert.Equal(t, models.DirectionBullish, sig.Direction)
	assert.LessOrEqual(t, sig.Slider, 0.25, "pre-market cap bounds the slider")
}

func TestSqueezeHistoryShiftsWinProbability(t *testing.T) {
	ev := NewSqueezeEvaluator(NewKellySizer(nil))
	ind := map[string]float64{
		models.IndBollingerWidth: 0.8,
		models.IndKeltnerWidth:   1.2,
		models.IndSqueezeBars:    12,
		models.IndMomentum:       0.5,
		models.IndRelVolume:      1.1,
	}

	base := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, ind), nil)
	require.Positive(t, base.Slider)

	pattern := models.KnowledgeEntry{
		Section:     models.SectionBullish,
		Key:         "squeeze_break_at_open",
		Tags:        []string{NameSqueeze},
		SuccessRate: 0.8,
	}
	lifted := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, ind),
		&models.KnowledgeContext{Patterns: []models.KnowledgeEntry{pattern}})
	assert.Greater(t, lifted.Slider, base.Slider)

	pattern.SuccessRate = 0.2
	dropped := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, ind),
		&models.KnowledgeContext{Patterns: []models.KnowledgeEntry{pattern}})
	assert.Less(t, dropped.Slider, base.Slider)

	pattern.Tags = []string{NameGap}
	unrelated := ev.Evaluate(context.Background(), snapshot(models.PhaseOpen, ind),
		&models.KnowledgeContext{Patterns: []models.KnowledgeEntry{pattern}})
	assert.InDelta(t, base.Slider, unrelated.Slider, 1e-9)
}
