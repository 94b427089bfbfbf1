package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
)

type stubQuerier struct {
	records []*models.DecisionRecord
	err     error
}

func (s *stubQuerier) QueryDecisions(_ context.Context, _ string, _ int) ([]*models.DecisionRecord, error) {
	return s.records, s.err
}

func record(cycle, symbol string, slider float64, outcome *models.RealizedOutcome) *models.DecisionRecord {
	return &models.DecisionRecord{
		Session:  "2025-03-12",
		Cycle:    cycle,
		Symbol:   symbol,
		Decision: models.Decision{Symbol: symbol, Slider: slider},
		Outcome:  outcome,
	}
}

func TestReplayAccumulatesSliderWeightedReturns(t *testing.T) {
	q := &stubQuerier{records: []*models.DecisionRecord{
		// out of cycle order on purpose
		record("2025-03-12T11:00:00-04:00", "SPY", -0.4,
			&models.RealizedOutcome{ReturnPct: 1.0, Closed: true}),
		record("2025-03-12T10:00:00-04:00", "SPY", 0.5,
			&models.RealizedOutcome{ReturnPct: 2.0, Closed: true}),
		record("2025-03-12T12:00:00-04:00", "SPY", 0, nil),
		record("2025-03-12T13:00:00-04:00", "SPY", 0.3, nil),
	}}
	e := NewEngine(q, nil)

	report, err := e.Replay(context.Background(), "2025-03-12")
	require.NoError(t, err)

	assert.Equal(t, 4, report.Decisions)
	assert.Equal(t, 3, report.Traded)
	assert.Equal(t, 2, report.Closed)
	assert.Equal(t, 1, report.Wins)
	assert.InDelta(t, 0.5, report.HitRate, 1e-9)
	assert.InDelta(t, 0.1, report.AvgSlider, 1e-9)
	assert.InDelta(t, 0.6, report.TotalReturnPct, 1e-9)
	assert.InDelta(t, 0.4, report.MaxDrawdownPct, 1e-9)

	require.Len(t, report.Curve, 2)
	assert.Equal(t, "2025-03-12T10:00:00-04:00", report.Curve[0].Cycle)
	assert.InDelta(t, 1.0, report.Curve[0].EquityPct, 1e-9)
	assert.InDelta(t, 0.6, report.Curve[1].EquityPct, 1e-9)
}

func TestReplayEmptySession(t *testing.T) {
	e := NewEngine(&stubQuerier{}, nil)

	report, err := e.Replay(context.Background(), "2025-03-13")
	require.NoError(t, err)
	assert.Zero(t, report.Decisions)
	assert.Zero(t, report.HitRate)
	assert.Empty(t, report.Curve)
}

func TestReplayPropagatesQueryError(t *testing.T) {
	e := NewEngine(&stubQuerier{err: errors.New("log unavailable")}, nil)

	_, err := e.Replay(context.Background(), "2025-03-12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2025-03-12")
}
