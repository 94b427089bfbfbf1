package models

import "time"

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type DecisionLogRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required"`
	Session string `query:"session" json:"session"`
	From    string `query:"from" json:"from"` // RFC3339 or unix seconds
	To      string `query:"to" json:"to"`
	Limit   int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type KnowledgePreviewRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Regime    string `query:"regime" json:"regime" default:"transitioning" validate:"oneof=trending ranging volatile transitioning"`
	Phase     string `query:"phase" json:"phase" default:"open" validate:"oneof=pre_market open lunch power_hour after_market overnight"`
	Setup     string `query:"setup" json:"setup"`
	Summaries int    `query:"summaries" json:"summaries" default:"5" validate:"gte=1,lte=20"`
}

type OutcomeStatsRequest struct {
	Session string `query:"session" json:"session" validate:"required"`
}

// SessionReplayRequest selects the session to rerun against its realized
// outcomes.
type SessionReplayRequest struct {
	Session string `query:"session" json:"session" validate:"required"`
	Curve   bool   `query:"curve" json:"curve"`
}

// DecisionLogItem is the wire form of one recorded decision.
type DecisionLogItem struct {
	Session    string        `json:"session"`
	Cycle      string        `json:"cycle"`
	Symbol     string        `json:"symbol"`
	Slider     float64       `json:"slider"`
	Confidence float64       `json:"confidence"`
	Regime     Regime        `json:"regime"`
	Agreement  int           `json:"agreement"`
	Status     RecordStatus  `json:"status"`
	Score      *OutcomeScore `json:"score,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewDecisionLogItem flattens a record for the HTTP decision log.
func NewDecisionLogItem(r *DecisionRecord) DecisionLogItem {
	return DecisionLogItem{
		Session:    r.Session,
		Cycle:      r.Cycle,
		Symbol:     r.Symbol,
		Slider:     r.Decision.Slider,
		Confidence: r.Decision.Confidence,
		Regime:     r.Decision.Regime,
		Agreement:  r.Decision.Agreement,
		Status:     r.Status,
		Score:      r.Score,
		CreatedAt:  r.CreatedAt,
	}
}

// OutcomeStats aggregates the scored records of one session.
type OutcomeStats struct {
	Session     string           `json:"session"`
	Records     int              `json:"records"`
	Scored      int              `json:"scored"`
	Pending     int              `json:"pending"`
	AvgSkill    float64          `json:"avg_skill"`
	AvgOutcome  float64          `json:"avg_outcome"`
	AvgCombined float64          `json:"avg_combined"`
	AvgLuck     float64          `json:"avg_luck"`
	Quadrants   map[Quadrant]int `json:"quadrants"`
}
