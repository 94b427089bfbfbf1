package synthesis

import (
	"context"
	"fmt"
	"time"

	"Confluence/internal/domain/models"
	"Confluence/pkg/logger"
)

// Strictness controls how a bull/bear conflict is resolved.
const (
	StrictnessLenient  = "lenient"  // divide the raw aggregate by 2
	StrictnessStandard = "standard" // divide the raw aggregate by 3
	StrictnessStrict   = "strict"   // force the slider to 0
)

// Config holds the deterministic synthesis parameters.
type Config struct {
	Strictness      string
	SingleSourceCap float64 // cap on |slider| when only one source is non-neutral
	Dampening       float64 // final risk dampening, 0.5 = half-Kelly
	NeutralDrag     float64 // multiplier when most strategies sit out
	MistakeDrag     float64 // multiplier per matched mistake entry, applied at most twice
}

func DefaultConfig() Config {
	return Config{
		Strictness:      StrictnessStandard,
		SingleSourceCap: 0.25,
		Dampening:       0.5,
		NeutralDrag:     0.3,
		MistakeDrag:     0.7,
	}
}

// Synthesizer is the deterministic weighted-rule synthesis policy. It
// implements service.SynthesisPolicy; alternate policies plug in via DI.
type Synthesizer struct {
	weights *WeightTable
	regime  *RegimeDetector
	cfg     Config
	logger  *logger.Logger
}

func New(weights *WeightTable, regime *RegimeDetector, cfg Config, lgr *logger.Logger) *Synthesizer {
	if cfg.SingleSourceCap <= 0 {
		cfg.SingleSourceCap = 0.25
	}
	if cfg.Dampening <= 0 || cfg.Dampening > 1 {
		cfg.Dampening = 0.5
	}
	if cfg.NeutralDrag <= 0 {
		cfg.NeutralDrag = 0.3
	}
	if cfg.Strictness == "" {
		cfg.Strictness = StrictnessStandard
	}
	if cfg.MistakeDrag <= 0 || cfg.MistakeDrag > 1 {
		cfg.MistakeDrag = 0.7
	}
	return &Synthesizer{weights: weights, regime: regime, cfg: cfg, logger: lgr}
}

// Synthesize combines the cycle's signals into one bounded decision. The
// knowledge context carries the store's matched history for this cycle;
// documented mistakes shrink the slider before risk dampening.
func (s *Synthesizer) Synthesize(_ context.Context, session models.SessionContext, snap *models.MarketSnapshot, signals []models.Signal, kc *models.KnowledgeContext) models.Decision {
	now := time.Now()
	if len(signals) == 0 {
		return models.NoTradeDecision(symbolOf(snap), now)
	}

	var bullish, bearish, neutral []models.Signal
	for _, sig := range signals {
		switch {
		case sig.Slider > 0:
			bullish = append(bullish, sig)
		case sig.Slider < 0:
			bearish = append(bearish, sig)
		default:
			neutral = append(neutral, sig)
		}
	}

	agreement := len(bullish)
	if len(bearish) > agreement {
		agreement = len(bearish)
	}

	weights := s.weights.ForPhase(session.Phase)
	var raw float64
	for _, sig := range signals {
		w, ok := weights[sig.Strategy]
		if !ok {
			w = 0.1
		}
		raw += w * sig.Confidence * sig.Slider
	}

	regime, regimeConf := models.RegimeTransitioning, 0.0
	if snap != nil {
		regime, regimeConf = s.regime.Classify(snap)
	}

	final := raw
	conflicted := len(bullish) >= 2 && len(bearish) >= 2
	split := len(bullish) >= 1 && len(bearish) >= 1 && !conflicted
	switch {
	case conflicted:
		// Conflicting strong opinions never produce a confident
		// directional decision.
		switch s.cfg.Strictness {
		case StrictnessStrict:
			final = 0
		case StrictnessLenient:
			final = raw / 2
		default:
			final = raw / 3
		}
	case split:
		// Opposing opinions of any size damp the aggregate.
		final = raw / 2
	case agreement >= 3:
		// Aligned conviction scales with the mean Kelly fraction of the
		// agreeing strategies.
		aligned := bullish
		if len(bearish) > len(bullish) {
			aligned = bearish
		}
		boost := 0.15
		if agreement >= 4 {
			boost = 0.30
		}
		final = raw * (1 + boost*meanKelly(aligned))
	}

	if len(neutral) >= 3 && len(bullish)+len(bearish) >= 1 && !conflicted {
		final *= s.cfg.NeutralDrag
	}

	mistakes := matchedMistakes(kc)
	if mistakes > 0 {
		// Each documented mistake for this symbol or setup argues for a
		// smaller position regardless of today's agreement. Two matches
		// is the ceiling so stale history cannot zero a live edge.
		drag := s.cfg.MistakeDrag
		if mistakes >= 2 {
			drag *= s.cfg.MistakeDrag
		}
		final *= drag
	}

	// Half-Kelly style dampening before the clamp.
	final *= s.cfg.Dampening

	if len(bullish)+len(bearish) == 1 {
		// Single-source signals are unreliable regardless of confidence.
		if final > s.cfg.SingleSourceCap {
			final = s.cfg.SingleSourceCap
		}
		if final < -s.cfg.SingleSourceCap {
			final = -s.cfg.SingleSourceCap
		}
	}

	if final > 1 {
		final = 1
	}
	if final < -1 {
		final = -1
	}

	confidence := s.decisionConfidence(final, bullish, bearish, signals, regimeConf)

	if s.logger != nil {
		s.logger.Debug("synthesized decision",
			logger.String("symbol", symbolOf(snap)),
			logger.String("cycle", session.CycleID),
			logger.Float64("raw", raw),
			logger.Float64("slider", final),
			logger.Int("agreement", agreement),
			logger.Int("mistakes", mistakes),
			logger.String("regime", string(regime)),
			logger.Bool("conflicted", conflicted))
	}

	return models.Decision{
		Symbol:        symbolOf(snap),
		Slider:        final,
		Confidence:    confidence,
		Regime:        regime,
		Agreement:     agreement,
		Signals:       signals,
		SynthesizedAt: now,
	}
}

// decisionConfidence blends the mean confidence of the signals aligned with
// the final direction with the regime classification confidence.
func (s *Synthesizer) decisionConfidence(final float64, bullish, bearish, all []models.Signal, regimeConf float64) float64 {
	if final == 0 {
		return 0
	}
	aligned := bullish
	if final < 0 {
		aligned = bearish
	}
	if len(aligned) == 0 {
		return 0
	}

	var sum float64
	for _, sig := range aligned {
		sum += sig.Confidence
	}
	mean := sum / float64(len(aligned))
	share := float64(len(aligned)) / float64(len(all))

	conf := mean*(0.6+0.4*share) + 0.1*regimeConf
	if conf > 1 {
		conf = 1
	}
	return conf
}

// matchedMistakes counts the mistake entries the store matched for this
// cycle. Retrieval already filtered them to the cycle's symbol and setup.
func matchedMistakes(kc *models.KnowledgeContext) int {
	if kc == nil {
		return 0
	}
	return len(kc.Mistakes)
}

func meanKelly(signals []models.Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var sum float64
	for _, sig := range signals {
		sum += sig.KellyFraction
	}
	return sum / float64(len(signals))
}

func symbolOf(snap *models.MarketSnapshot) string {
	if snap == nil {
		return ""
	}
	return snap.Symbol
}

// Describe summarizes the active configuration for audit logs.
func (c Config) Describe() string {
	return fmt.Sprintf("strictness=%s single_source_cap=%.2f dampening=%.2f mistake_drag=%.2f",
		c.Strictness, c.SingleSourceCap, c.Dampening, c.MistakeDrag)
}
