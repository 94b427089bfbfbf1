// Package replay reruns a recorded session's decisions against their
// realized outcomes. The slider is treated as the fraction of capital
// exposed per cycle, so each closed decision contributes its
// slider-weighted return to the session equity curve.
package replay

import (
	"context"
	"fmt"
	"sort"

	"Confluence/internal/domain/models"
	"Confluence/pkg/logger"
)

// Querier reads the recorded decisions of one session.
type Querier interface {
	QueryDecisions(ctx context.Context, sessionID string, limit int) ([]*models.DecisionRecord, error)
}

// EquityPoint is one closed decision on the session equity curve.
type EquityPoint struct {
	Cycle     string  `json:"cycle"`
	Symbol    string  `json:"symbol"`
	Slider    float64 `json:"slider"`
	ReturnPct float64 `json:"return_pct"`
	EquityPct float64 `json:"equity_pct"`
}

// Report aggregates a replayed session.
type Report struct {
	Session        string        `json:"session"`
	Decisions      int           `json:"decisions"`
	Traded         int           `json:"traded"`
	Closed         int           `json:"closed"`
	Wins           int           `json:"wins"`
	HitRate        float64       `json:"hit_rate"`
	AvgSlider      float64       `json:"avg_slider"`
	TotalReturnPct float64       `json:"total_return_pct"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"`
	Curve          []EquityPoint `json:"curve,omitempty"`
}

// Engine replays sessions from the durable decision log.
type Engine struct {
	querier Querier
	logger  *logger.Logger
	limit   int
}

func NewEngine(querier Querier, lgr *logger.Logger) *Engine {
	return &Engine{querier: querier, logger: lgr, limit: 1000}
}

// Replay walks the session's decisions in cycle order and accumulates
// slider-weighted realized returns. Decisions without a closed outcome
// count toward the totals but not toward the curve.
func (e *Engine) Replay(ctx context.Context, session string) (*Report, error) {
	records, err := e.querier.QueryDecisions(ctx, session, e.limit)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", session, err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Cycle < records[j].Cycle
	})

	report := &Report{Session: session}
	var sliderSum, equity, peak float64
	for _, r := range records {
		if r == nil {
			continue
		}
		report.Decisions++
		sliderSum += r.Decision.Slider
		if r.Decision.Slider != 0 {
			report.Traded++
		}
		if r.Outcome == nil || !r.Outcome.Closed || r.Decision.Slider == 0 {
			continue
		}
		report.Closed++
		ret := r.Decision.Slider * r.Outcome.ReturnPct
		if ret > 0 {
			report.Wins++
		}
		equity += ret
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > report.MaxDrawdownPct {
			report.MaxDrawdownPct = dd
		}
		report.Curve = append(report.Curve, EquityPoint{
			Cycle:     r.Cycle,
			Symbol:    r.Symbol,
			Slider:    r.Decision.Slider,
			ReturnPct: ret,
			EquityPct: equity,
		})
	}

	report.TotalReturnPct = equity
	if report.Decisions > 0 {
		report.AvgSlider = sliderSum / float64(report.Decisions)
	}
	if report.Closed > 0 {
		report.HitRate = float64(report.Wins) / float64(report.Closed)
	}

	if e.logger != nil {
		e.logger.Info("session replayed",
			logger.String("session", session),
			logger.Int("decisions", report.Decisions),
			logger.Int("closed", report.Closed),
			logger.Float64("total_return_pct", report.TotalReturnPct))
	}
	return report, nil
}
