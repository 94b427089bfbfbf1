package service

import (
	"context"

	"Confluence/internal/domain/models"
)

// Evaluator turns a market snapshot into one bounded strategy signal.
// Implementations are pure: they never fail outward, never consult other
// evaluators, and degrade to a neutral signal on bad input.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, snap *models.MarketSnapshot, kc *models.KnowledgeContext) models.Signal
}

// SynthesisPolicy combines the cycle's signals into one decision. Policies
// must be deterministic; alternate implementations plug in via DI.
type SynthesisPolicy interface {
	Synthesize(ctx context.Context, session models.SessionContext, snap *models.MarketSnapshot, signals []models.Signal, kc *models.KnowledgeContext) models.Decision
}

// OutcomeScorer computes the skill/outcome/luck evaluation of a finalized
// decision record once its realized result is known.
type OutcomeScorer interface {
	Score(record *models.DecisionRecord, outcome models.RealizedOutcome, kc *models.KnowledgeContext) (models.OutcomeScore, error)
}
