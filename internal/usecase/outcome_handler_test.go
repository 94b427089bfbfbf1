package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/internal/outcome"
	"Confluence/internal/recorder"
)

func seedRecord(t *testing.T, rec *recorder.MemoryRecorder) models.SessionContext {
	t.Helper()
	session := models.SessionContext{
		SessionID:   "2025-03-12",
		CycleID:     "2025-03-12T10:00:00Z",
		TradingDate: "2025-03-12",
		Phase:       models.PhaseOpen,
	}
	_, err := rec.Record(context.Background(), session, models.Decision{
		Symbol: "SPY", Slider: 0.3, Confidence: 0.6,
		Regime: models.RegimeTrending, Agreement: 2,
		Signals:       []models.Signal{models.NewSignal("orb", 0.5, 0.7, 0.4, "breakout")},
		SynthesizedAt: time.Now(),
	})
	require.NoError(t, err)
	return session
}

func event(t *testing.T, ev outcomeEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func newHandler(t *testing.T, rec *recorder.MemoryRecorder, metrics *stubMetrics) *OutcomeHandler {
	t.Helper()
	scorer := outcome.NewScorer(outcome.DefaultConfig(), nil)
	return NewOutcomeHandler("confluence.outcomes", rec, scorer, testStore(t), metrics, testLogger(t))
}

func TestHandleFillThenOutcomeScoresRecord(t *testing.T) {
	ctx := context.Background()
	rec := recorder.NewMemoryRecorder()
	session := seedRecord(t, rec)
	h := newHandler(t, rec, &stubMetrics{})

	err := h.Handle(ctx, event(t, outcomeEvent{
		Kind: "fill", Session: session.SessionID, Cycle: session.CycleID, Symbol: "SPY",
		Quantity: 100, EntryPrice: 430.25, FilledAt: time.Now(),
	}))
	require.NoError(t, err)

	err = h.Handle(ctx, event(t, outcomeEvent{
		Kind: "outcome", Session: session.SessionID, Cycle: session.CycleID, Symbol: "SPY",
		PnL: 200, ReturnPct: 1.4, BenchmarkReturn: 0.3, MaxDrawdownPct: 0.6,
		Closed: true, ClosedAt: time.Now(),
	}))
	require.NoError(t, err)

	stored, err := rec.Get(ctx, session.SessionID, session.CycleID, "SPY")
	require.NoError(t, err)
	assert.Equal(t, models.StatusScored, stored.Status)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 100.0, stored.Score.Outcome)
}

func TestHandleOutcomeBeforeFillStaysPending(t *testing.T) {
	ctx := context.Background()
	rec := recorder.NewMemoryRecorder()
	session := seedRecord(t, rec)
	h := newHandler(t, rec, &stubMetrics{})

	err := h.Handle(ctx, event(t, outcomeEvent{
		Kind: "outcome", Session: session.SessionID, Cycle: session.CycleID, Symbol: "SPY",
		PnL: 200, ReturnPct: 1.4, Closed: true, ClosedAt: time.Now(),
	}))
	require.NoError(t, err)

	stored, err := rec.Get(ctx, session.SessionID, session.CycleID, "SPY")
	require.NoError(t, err)
	assert.Nil(t, stored.Score)
	assert.Equal(t, models.StatusPendingExecution, stored.Status)
}

func TestHandleOpenPositionDefersScoring(t *testing.T) {
	ctx := context.Background()
	rec := recorder.NewMemoryRecorder()
	session := seedRecord(t, rec)
	h := newHandler(t, rec, &stubMetrics{})

	require.NoError(t, h.Handle(ctx, event(t, outcomeEvent{
		Kind: "fill", Session: session.SessionID, Cycle: session.CycleID, Symbol: "SPY",
		Quantity: 100, EntryPrice: 430.25, FilledAt: time.Now(),
	})))

	err := h.Handle(ctx, event(t, outcomeEvent{
		Kind: "outcome", Session: session.SessionID, Cycle: session.CycleID, Symbol: "SPY",
		PnL: 40, ReturnPct: 0.2, Closed: false,
	}))
	require.NoError(t, err)

	stored, err := rec.Get(ctx, session.SessionID, session.CycleID, "SPY")
	require.NoError(t, err)
	assert.Nil(t, stored.Score)
}

func TestHandleDuplicateFillIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rec := recorder.NewMemoryRecorder()
	session := seedRecord(t, rec)
	h := newHandler(t, rec, &stubMetrics{})

	fill := event(t, outcomeEvent{
		Kind: "fill", Session: session.SessionID, Cycle: session.CycleID, Symbol: "SPY",
		Quantity: 100, EntryPrice: 430.25, FilledAt: time.Now(),
	})
	require.NoError(t, h.Handle(ctx, fill))
	assert.NoError(t, h.Handle(ctx, fill))
}

func TestHandleRejectsMalformedEvents(t *testing.T) {
	metrics := &stubMetrics{}
	h := newHandler(t, recorder.NewMemoryRecorder(), metrics)

	assert.Error(t, h.Handle(context.Background(), []byte("{not json")))
	assert.Error(t, h.Handle(context.Background(), event(t, outcomeEvent{Kind: "mystery"})))
	assert.Contains(t, metrics.errors, "outcome_unmarshal")
	assert.Contains(t, metrics.errors, "outcome_unknown_kind")
}
