package outcome

import (
	"fmt"
	"time"

	"Confluence/internal/domain/models"
	"Confluence/internal/domain/repository"
	"Confluence/pkg/logger"
)

// Config bounds used by the scoring components.
type Config struct {
	// Position sizing is judged against these absolute slider bounds.
	MinPosition float64
	MaxPosition float64

	// Drawdown at or above this percentage forfeits the low-drawdown
	// outcome component.
	DrawdownThreshold float64
}

func DefaultConfig() Config {
	return Config{
		MinPosition:       0.05,
		MaxPosition:       0.75,
		DrawdownThreshold: 2.0,
	}
}

// Scorer computes the post-hoc skill/outcome/luck evaluation of a decision.
// Skill scores the process from what was knowable at decision time; Outcome
// scores the realized result; Combined weights process over result.
type Scorer struct {
	cfg    Config
	logger *logger.Logger
}

func NewScorer(cfg Config, lgr *logger.Logger) *Scorer {
	if cfg.MaxPosition <= 0 {
		cfg.MaxPosition = 0.75
	}
	if cfg.DrawdownThreshold <= 0 {
		cfg.DrawdownThreshold = 2.0
	}
	return &Scorer{cfg: cfg, logger: lgr}
}

// Score evaluates a finalized record against its realized outcome. The
// record must be executed and the position closed; otherwise scoring is
// deferred with a sentinel error.
func (s *Scorer) Score(record *models.DecisionRecord, outcome models.RealizedOutcome, kc *models.KnowledgeContext) (models.OutcomeScore, error) {
	if record == nil {
		return models.OutcomeScore{}, fmt.Errorf("score: nil record")
	}
	if record.Score != nil {
		return models.OutcomeScore{}, fmt.Errorf("score %s: already scored", record.Key())
	}
	if record.Execution == nil {
		return models.OutcomeScore{}, fmt.Errorf("score %s: %w", record.Key(), repository.ErrScoringPending)
	}
	if !outcome.Closed {
		return models.OutcomeScore{}, fmt.Errorf("score %s: %w", record.Key(), repository.ErrOutcomeIncomplete)
	}

	components := models.SkillComponents{
		Alignment:    s.alignmentScore(record.Decision),
		Sizing:       s.sizingScore(record.Decision),
		RiskReward:   s.riskRewardScore(outcome),
		PatternMatch: s.patternMatchScore(record.Decision, kc),
	}

	skill := clampScore(components.Alignment + components.Sizing +
		components.RiskReward + components.PatternMatch)
	result := clampScore(s.outcomeScore(outcome))

	score := models.OutcomeScore{
		Skill:      skill,
		Outcome:    result,
		Combined:   0.6*skill + 0.4*result,
		LuckFactor: luckFactor(skill, result),
		Components: components,
		Quadrant:   models.QuadrantFor(skill, result),
		ScoredAt:   time.Now(),
	}

	if s.logger != nil {
		s.logger.Info("decision scored",
			logger.String("record", record.Key()),
			logger.Float64("skill", score.Skill),
			logger.Float64("outcome", score.Outcome),
			logger.Float64("combined", score.Combined),
			logger.Float64("luck_pct", score.LuckFactor),
			logger.String("quadrant", string(score.Quadrant)))
	}

	return score, nil
}

// alignmentScore rewards decisions whose underlying signals agreed with the
// final direction. Max 30.
func (s *Scorer) alignmentScore(d models.Decision) float64 {
	var aligned, nonNeutral int
	for _, sig := range d.Signals {
		if sig.IsNeutral() {
			continue
		}
		nonNeutral++
		if (d.Slider > 0 && sig.Slider > 0) || (d.Slider < 0 && sig.Slider < 0) {
			aligned++
		}
	}
	if nonNeutral == 0 || d.Slider == 0 {
		return 0
	}
	return 30 * float64(aligned) / float64(nonNeutral)
}

// sizingScore rewards position sizes inside the configured bounds. Max 20.
func (s *Scorer) sizingScore(d models.Decision) float64 {
	size := absf(d.Slider)
	switch {
	case size >= s.cfg.MinPosition && size <= s.cfg.MaxPosition:
		return 20
	case size > s.cfg.MaxPosition:
		// Oversizing is the worse discipline failure.
		return 5
	case size > 0:
		return 8
	default:
		return 0
	}
}

// riskRewardScore compares realized return against realized drawdown. Max 25.
func (s *Scorer) riskRewardScore(o models.RealizedOutcome) float64 {
	if o.ReturnPct <= 0 {
		return 0
	}
	if o.MaxDrawdownPct <= 0 {
		// Profit with no adverse excursion.
		return 25
	}
	ratio := o.ReturnPct / o.MaxDrawdownPct
	switch {
	case ratio >= 2:
		return 25
	case ratio >= 1:
		return 18
	case ratio >= 0.5:
		return 10
	default:
		return 5
	}
}

// patternMatchScore looks up the historical success rate of the decision's
// dominant setup among retrieved pattern entries. Max 25; no history scores
// the neutral midpoint.
func (s *Scorer) patternMatchScore(d models.Decision, kc *models.KnowledgeContext) float64 {
	setup := dominantSetup(d)
	rate, ok := kc.SuccessRateFor(setup)
	if !ok {
		return 12
	}
	switch {
	case rate >= 0.7:
		return 25
	case rate >= 0.5:
		return 18
	case rate >= 0.3:
		return 12
	default:
		return 5
	}
}

func (s *Scorer) outcomeScore(o models.RealizedOutcome) float64 {
	var score float64
	if o.PnL > 0 {
		score += 50
	}
	if o.ReturnPct > o.BenchmarkReturn {
		score += 25
	}
	if o.MaxDrawdownPct < s.cfg.DrawdownThreshold {
		score += 25
	}
	return score
}

// dominantSetup picks the strategy (and mode variant) of the strongest
// signal aligned with the decision, falling back to the strongest overall.
func dominantSetup(d models.Decision) string {
	var best models.Signal
	var bestWeight float64
	var found bool
	for _, sig := range d.Signals {
		if sig.IsNeutral() {
			continue
		}
		w := absf(sig.Slider) * sig.Confidence
		aligned := (d.Slider > 0 && sig.Slider > 0) || (d.Slider < 0 && sig.Slider < 0)
		if aligned {
			w *= 2
		}
		if !found || w > bestWeight {
			best, bestWeight, found = sig, w, true
		}
	}
	if !found {
		return ""
	}
	if best.Mode != "" {
		return best.Strategy + "_" + best.Mode
	}
	return best.Strategy
}

// luckFactor is the share of the outcome not explained by skill, in percent.
func luckFactor(skill, outcome float64) float64 {
	if outcome <= skill {
		return 0
	}
	return outcome - skill
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
