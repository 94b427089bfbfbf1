package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/internal/strategy"
)

func newTestSynthesizer(t *testing.T, cfg Config) *Synthesizer {
	t.Helper()
	wt, err := NewWeightTable(nil)
	require.NoError(t, err)
	return New(wt, NewRegimeDetector(), cfg, nil)
}

func sig(name string, slider, conf, kelly float64) models.Signal {
	return models.NewSignal(name, slider, conf, kelly, "test")
}

func openSession() models.SessionContext {
	return models.SessionContext{
		SessionID:   "2025-03-12",
		CycleID:     "2025-03-12T10:00:00-04:00",
		TradingDate: "2025-03-12",
		Phase:       models.PhaseOpen,
	}
}

func marketSnap() *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:    "SPY",
		Timestamp: time.Now(),
		Phase:     models.PhaseOpen,
		Indicators: map[string]float64{
			models.IndPrice:          100,
			models.IndATR14:          1,
			models.IndADX:            30,
			models.IndBollingerWidth: 1.0,
			models.IndKeltnerWidth:   1.0,
			models.IndMomentum:       0.8,
		},
	}
}

func TestSynthesizeEmptySignalSet(t *testing.T) {
	s := newTestSynthesizer(t, DefaultConfig())
	d := s.Synthesize(context.Background(), openSession(), marketSnap(), nil, nil)

	assert.Zero(t, d.Slider)
	assert.Zero(t, d.Confidence)
	assert.Equal(t, models.RegimeTransitioning, d.Regime)
	assert.Zero(t, d.Agreement)
}

func TestSynthesizeTwoAgreeingBullsNotCapped(t *testing.T) {
	s := newTestSynthesizer(t, DefaultConfig())
	signals := []models.Signal{
		sig(strategy.NameORB, 0.6, 0.7, 0.6),
		sig(strategy.NameGap, 0.5, 0.6, 0.5),
		sig(strategy.NameSqueeze, 0, 0, 0),
		sig(strategy.NameMeanReversion, 0, 0, 0),
	}

	d := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, nil)

	// Open-phase weights: orb 0.35, gap 0.20.
	// raw = 0.35*0.7*0.6 + 0.20*0.6*0.5 = 0.207; dampened by 0.5.
	assert.Equal(t, 2, d.Agreement)
	assert.InDelta(t, 0.1035, d.Slider, 1e-9)
	assert.Positive(t, d.Confidence)
}

func TestSynthesizeOneVsOneSplitForcedTowardZero(t *testing.T) {
	s := newTestSynthesizer(t, DefaultConfig())
	signals := []models.Signal{
		sig(strategy.NameORB, 0.8, 0.8, 0.7),
		sig(strategy.NameSqueeze, -0.7, 0.7, 0.6),
		sig(strategy.NameGap, 0, 0, 0),
		sig(strategy.NameMeanReversion, 0, 0, 0),
		sig(strategy.NameOvernight, 0, 0, 0),
	}

	d := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, nil)

	// raw = 0.35*0.8*0.8 - 0.20*0.7*0.7 = 0.126; split halves it, three
	// neutrals drag it, dampening halves it again.
	var raw = 0.35*0.8*0.8 - 0.20*0.7*0.7
	assert.InDelta(t, raw/2*0.3*0.5, d.Slider, 1e-9)
	assert.Less(t, absf(d.Slider), 0.02)
}

func TestSynthesizeConflictDamping(t *testing.T) {
	for _, tc := range []struct {
		strictness string
		wantZero   bool
	}{
		{StrictnessLenient, false},
		{StrictnessStandard, false},
		{StrictnessStrict, true},
	} {
		cfg := DefaultConfig()
		cfg.Strictness = tc.strictness
		s := newTestSynthesizer(t, cfg)

		signals := []models.Signal{
			sig(strategy.NameORB, 0.8, 0.8, 0.7),
			sig(strategy.NameGap, 0.6, 0.7, 0.5),
			sig(strategy.NameSqueeze, -0.7, 0.8, 0.6),
			sig(strategy.NameMeanReversion, -0.5, 0.6, 0.4),
		}

		d := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, nil)

		var raw float64
		weights := map[string]float64{
			strategy.NameORB: 0.35, strategy.NameGap: 0.20,
			strategy.NameSqueeze: 0.20, strategy.NameMeanReversion: 0.15,
		}
		for _, sg := range signals {
			raw += weights[sg.Strategy] * sg.Confidence * sg.Slider
		}

		if tc.wantZero {
			assert.Zero(t, d.Slider, tc.strictness)
		} else {
			require.NotZero(t, raw)
			assert.LessOrEqual(t, absf(d.Slider), absf(raw)/2,
				"%s: conflicted slider must be damped to at most half the raw aggregate", tc.strictness)
		}
	}
}

func TestSynthesizeSingleSourceCap(t *testing.T) {
	cfg := Config{
		Strictness:      StrictnessStandard,
		SingleSourceCap: 0.25,
		Dampening:       1,
		NeutralDrag:     1,
	}
	s := newTestSynthesizer(t, cfg)

	signals := []models.Signal{
		sig(strategy.NameORB, 1.0, 1.0, 1.0),
		sig(strategy.NameGap, 0, 0, 0),
		sig(strategy.NameSqueeze, 0, 0, 0),
	}

	d := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, nil)

	// raw = 0.35 but a lone voice is capped regardless of its confidence.
	assert.Equal(t, 0.25, d.Slider)
}

func TestSynthesizeAgreementBoostUsesMeanKelly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NeutralDrag = 1
	s := newTestSynthesizer(t, cfg)

	signals := []models.Signal{
		sig(strategy.NameORB, 0.5, 0.8, 0.6),
		sig(strategy.NameGap, 0.4, 0.7, 0.5),
		sig(strategy.NameSqueeze, 0.6, 0.8, 0.7),
	}

	d := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, nil)

	raw := 0.35*0.8*0.5 + 0.20*0.7*0.4 + 0.20*0.8*0.6
	mean := (0.6 + 0.5 + 0.7) / 3
	want := raw * (1 + 0.15*mean) * 0.5
	assert.InDelta(t, want, d.Slider, 1e-9)
	assert.Equal(t, 3, d.Agreement)
}

func TestSynthesizeSliderAlwaysBounded(t *testing.T) {
	cfg := Config{Strictness: StrictnessLenient, SingleSourceCap: 0.25, Dampening: 1, NeutralDrag: 1}
	s := newTestSynthesizer(t, cfg)

	signals := []models.Signal{
		sig(strategy.NameORB, 1, 1, 1),
		sig(strategy.NameGap, 1, 1, 1),
		sig(strategy.NameSqueeze, 1, 1, 1),
		sig(strategy.NameMeanReversion, 1, 1, 1),
		sig(strategy.NameOvernight, 1, 1, 1),
	}

	d := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, nil)
	assert.LessOrEqual(t, d.Slider, 1.0)
	assert.GreaterOrEqual(t, d.Slider, -1.0)
	assert.LessOrEqual(t, d.Confidence, 1.0)
}

func TestSynthesizeMistakeHistoryDampsSlider(t *testing.T) {
	s := newTestSynthesizer(t, DefaultConfig())

	signals := []models.Signal{
		sig(strategy.NameSqueeze, 0.6, 0.8, 0.3),
		sig(strategy.NameORB, 0.5, 0.7, 0.25),
		sig(strategy.NameGap, 0.4, 0.6, 0.2),
	}

	clean := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, nil)
	require.Greater(t, clean.Slider, 0.0)

	mistake := models.KnowledgeEntry{
		Section: models.SectionMistake,
		Key:     "avoid_squeeze_on_spy",
		Title:   "avoid squeeze on SPY",
		Tags:    []string{"SPY", "squeeze"},
	}
	kc := &models.KnowledgeContext{Mistakes: []models.KnowledgeEntry{mistake}}
	burned := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, kc)
	assert.InDelta(t, clean.Slider*0.7, burned.Slider, 1e-9)

	second := mistake
	second.Key = "avoid_chasing_spy_open"
	kc.Mistakes = append(kc.Mistakes, second)
	twice := s.Synthesize(context.Background(), openSession(), marketSnap(), signals, kc)
	assert.InDelta(t, clean.Slider*0.49, twice.Slider, 1e-9)
}
