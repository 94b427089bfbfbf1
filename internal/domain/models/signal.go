package models

import (
	"fmt"
	"time"
)

// Direction is the directional read of a single strategy.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// maxRationaleLen bounds rationale text carried on every signal.
const maxRationaleLen = 240

// Signal is one strategy's bounded read of a snapshot.
type Signal struct {
	Strategy      string
	Slider        float64 // [-1, 1]
	Confidence    float64 // [0, 1]
	Direction     Direction
	Rationale     string
	Mode          string  // optional strategy-specific variant tag
	KellyFraction float64 // raw f* the slider was sized from
	Timestamp     time.Time
}

// NewSignal builds a signal with direction derived from the slider sign and
// rationale truncated to the bounded length.
func NewSignal(strategy string, slider, confidence, kelly float64, rationale string) Signal {
	dir := DirectionNeutral
	switch {
	case slider > 0:
		dir = DirectionBullish
	case slider < 0:
		dir = DirectionBearish
	}

	if len(rationale) > maxRationaleLen {
		rationale = rationale[:maxRationaleLen]
	}

	return Signal{
		Strategy:      strategy,
		Slider:        slider,
		Confidence:    confidence,
		Direction:     dir,
		Rationale:     rationale,
		KellyFraction: kelly,
		Timestamp:     time.Now(),
	}
}

// NeutralSignal builds a no-trade signal carrying the reason in rationale.
func NeutralSignal(strategy, reason string) Signal {
	s := NewSignal(strategy, 0, 0, 0, reason)
	return s
}

// Validate checks slider/confidence bounds and direction consistency.
func (s Signal) Validate() error {
	if s.Slider < -1 || s.Slider > 1 {
		return fmt.Errorf("signal %s: slider %v out of [-1,1]", s.Strategy, s.Slider)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal %s: confidence %v out of [0,1]", s.Strategy, s.Confidence)
	}
	if s.Slider > 0 && s.Direction == DirectionBearish {
		return fmt.Errorf("signal %s: positive slider with bearish direction", s.Strategy)
	}
	if s.Slider < 0 && s.Direction == DirectionBullish {
		return fmt.Errorf("signal %s: negative slider with bullish direction", s.Strategy)
	}
	return nil
}

// IsNeutral reports whether the signal carries no directional conviction.
func (s Signal) IsNeutral() bool {
	return s.Slider == 0
}
