package strategy

import (
	"Confluence/internal/domain/models"
)

// Kelly fraction: f* = (b*p - q) / b with q = 1 - p. Negative expectancy
// sizes to zero; fractions above 1 clamp to 1.
func KellyFraction(p, b float64) float64 {
	if b <= 0 {
		return 0
	}
	q := 1 - p
	f := (b*p - q) / b
	if f <= 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// KellySizer converts (win probability, reward/risk) estimates into a capped
// allocation fraction. The per-phase caps bound exposure by session window.
type KellySizer struct {
	phaseCaps map[models.SessionPhase]float64
}

// DefaultPhaseCaps returns the session-phase exposure caps.
func DefaultPhaseCaps() map[models.SessionPhase]float64 {
	return map[models.SessionPhase]float64{
		models.PhasePreMarket:   0.25,
		models.PhaseOpen:        0.50,
		models.PhaseLunch:       0.10,
		models.PhasePowerHour:   0.50,
		models.PhaseAfterMarket: 0.25,
		models.PhaseOvernight:   0.10,
	}
}

// NewKellySizer builds a sizer. Empty or partial caps fall back to defaults
// per phase.
func NewKellySizer(caps map[models.SessionPhase]float64) *KellySizer {
	merged := DefaultPhaseCaps()
	for phase, c := range caps {
		merged[phase] = c
	}
	return &KellySizer{phaseCaps: merged}
}

// Size returns the phase-capped allocation fraction and the raw Kelly
// fraction it was derived from.
func (s *KellySizer) Size(p, b float64, phase models.SessionPhase) (sized, raw float64) {
	raw = KellyFraction(p, b)
	sized = raw

	if limit, ok := s.phaseCaps[phase]; ok && sized > limit {
		sized = limit
	}
	return sized, raw
}

// PhaseCap exposes the configured cap for a phase.
func (s *KellySizer) PhaseCap(phase models.SessionPhase) float64 {
	if c, ok := s.phaseCaps[phase]; ok {
		return c
	}
	return 1
}
