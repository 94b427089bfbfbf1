package models

import "time"

// RecordStatus tracks the lifecycle of a decision record.
type RecordStatus string

const (
	StatusPendingExecution RecordStatus = "pending_execution"
	StatusExecuted         RecordStatus = "executed"
	StatusScored           RecordStatus = "scored"
)

// ExecutionFact holds the execution result attached after the decision.
type ExecutionFact struct {
	Quantity   float64
	EntryPrice float64
	FilledAt   time.Time
}

// RealizedOutcome is the observable result of an executed decision.
type RealizedOutcome struct {
	PnL             float64
	ReturnPct       float64
	BenchmarkReturn float64
	MaxDrawdownPct  float64
	Closed          bool
	ClosedAt        time.Time
}

// SkillComponents are the four independently capped skill score parts.
type SkillComponents struct {
	Alignment    float64 // <= 30
	Sizing       float64 // <= 20
	RiskReward   float64 // <= 25
	PatternMatch float64 // <= 25
}

// Quadrant classifies a scored decision on the skill/outcome plane.
type Quadrant string

const (
	QuadrantSkillAndLuck Quadrant = "q1_skill_and_luck"
	QuadrantLuckOnly     Quadrant = "q2_luck_only"
	QuadrantSkillOnly    Quadrant = "q3_skill_only"
	QuadrantNeither      Quadrant = "q4_neither"
)

// QuadrantFor maps skill and outcome scores onto the four quadrants.
// High skill means process quality >= 60; good outcome means result >= 60.
func QuadrantFor(skill, outcome float64) Quadrant {
	highSkill := skill >= 60
	goodOutcome := outcome >= 60

	switch {
	case highSkill && goodOutcome:
		return QuadrantSkillAndLuck
	case !highSkill && goodOutcome:
		return QuadrantLuckOnly
	case highSkill && !goodOutcome:
		return QuadrantSkillOnly
	default:
		return QuadrantNeither
	}
}

// OutcomeScore is the post-hoc process-vs-result evaluation of a decision.
// Combined weights process over result: 0.6*Skill + 0.4*Outcome. LuckFactor
// is the share of the outcome not explained by skill, as a percentage.
type OutcomeScore struct {
	Skill      float64 // [0, 100]
	Outcome    float64 // [0, 100]
	Combined   float64 // 0.6*Skill + 0.4*Outcome
	LuckFactor float64 // max(0, Outcome-Skill), percent
	Components SkillComponents
	Quadrant   Quadrant
	ScoredAt   time.Time
}

// DecisionRecord is a decision plus execution facts and, once known, its
// outcome score. Never mutated after scoring.
type DecisionRecord struct {
	Session   string
	Cycle     string
	Symbol    string
	Decision  Decision
	Execution *ExecutionFact
	Outcome   *RealizedOutcome
	Score     *OutcomeScore
	Status    RecordStatus
	CreatedAt time.Time
}

// Key returns the unique session/cycle/symbol key of the record.
func (r *DecisionRecord) Key() string {
	return r.Session + "/" + r.Cycle + "/" + r.Symbol
}
