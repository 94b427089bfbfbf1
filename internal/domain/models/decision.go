package models

import (
	"fmt"
	"time"
)

// Regime is a coarse classification of current market behavior.
type Regime string

const (
	RegimeTrending      Regime = "trending"
	RegimeRanging       Regime = "ranging"
	RegimeVolatile      Regime = "volatile"
	RegimeTransitioning Regime = "transitioning"
)

// SessionContext identifies the trading session and cycle a computation
// belongs to. It is threaded explicitly through evaluate/synthesize/record
// calls; its lifecycle is one trading session.
type SessionContext struct {
	SessionID   string // trading date, e.g. "2025-03-12"
	CycleID     string // RFC3339 cycle timestamp
	TradingDate string
	Phase       SessionPhase
}

// NewSessionContext derives a session context from a cycle timestamp.
func NewSessionContext(t time.Time, loc *time.Location) SessionContext {
	local := t
	if loc != nil {
		local = t.In(loc)
	}
	date := local.Format("2006-01-02")
	return SessionContext{
		SessionID:   date,
		CycleID:     local.Format(time.RFC3339),
		TradingDate: date,
		Phase:       PhaseAt(t, loc),
	}
}

// RecordKey is the unique (session, cycle, symbol) key for a decision record.
func (sc SessionContext) RecordKey(symbol string) string {
	return fmt.Sprintf("%s/%s/%s", sc.SessionID, sc.CycleID, symbol)
}

// Decision is the synthesized, risk-sized output of one cycle for one symbol.
// It is immutable once handed to the recorder.
type Decision struct {
	Symbol        string
	Slider        float64 // [-1, 1]
	Confidence    float64 // [0, 1]
	Regime        Regime
	Agreement     int
	Signals       []Signal
	SynthesizedAt time.Time
}

// NoTradeDecision is the decision produced when no signals are available.
func NoTradeDecision(symbol string, at time.Time) Decision {
	return Decision{
		Symbol:        symbol,
		Slider:        0,
		Confidence:    0,
		Regime:        RegimeTransitioning,
		Agreement:     0,
		SynthesizedAt: at,
	}
}
