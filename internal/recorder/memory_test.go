package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/internal/domain/repository"
)

func session(cycle string) models.SessionContext {
	return models.SessionContext{
		SessionID:   "2025-03-12",
		CycleID:     cycle,
		TradingDate: "2025-03-12",
		Phase:       models.PhaseOpen,
	}
}

func decision(symbol string, slider float64) models.Decision {
	return models.Decision{
		Symbol:        symbol,
		Slider:        slider,
		Confidence:    0.6,
		Regime:        models.RegimeTrending,
		Agreement:     2,
		SynthesizedAt: time.Now(),
	}
}

func TestRecordRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRecorder()

	rec, err := r.Record(ctx, session("c1"), decision("SPY", 0.3))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingExecution, rec.Status)

	_, err = r.Record(ctx, session("c1"), decision("SPY", 0.4))
	assert.ErrorIs(t, err, repository.ErrDuplicateRecord)

	// Same cycle, different symbol is a distinct key.
	_, err = r.Record(ctx, session("c1"), decision("QQQ", 0.2))
	assert.NoError(t, err)

	// Same symbol, later cycle is a distinct key.
	_, err = r.Record(ctx, session("c2"), decision("SPY", 0.1))
	assert.NoError(t, err)
}

func TestAttachLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRecorder()
	_, err := r.Record(ctx, session("c1"), decision("SPY", 0.3))
	require.NoError(t, err)

	exec := models.ExecutionFact{Quantity: 100, EntryPrice: 430.25, FilledAt: time.Now()}
	require.NoError(t, r.AttachExecution(ctx, "2025-03-12", "c1", "SPY", exec))

	err = r.AttachExecution(ctx, "2025-03-12", "c1", "SPY", exec)
	assert.ErrorIs(t, err, repository.ErrDuplicateRecord)

	outcome := models.RealizedOutcome{PnL: 120, ReturnPct: 0.8, Closed: true, ClosedAt: time.Now()}
	score := models.OutcomeScore{Skill: 70, Outcome: 100, Combined: 82, Quadrant: models.QuadrantSkillAndLuck}
	require.NoError(t, r.AttachScore(ctx, "2025-03-12", "c1", "SPY", outcome, score))

	err = r.AttachScore(ctx, "2025-03-12", "c1", "SPY", outcome, score)
	assert.ErrorIs(t, err, repository.ErrDuplicateRecord)

	rec, err := r.Get(ctx, "2025-03-12", "c1", "SPY")
	require.NoError(t, err)
	assert.Equal(t, models.StatusScored, rec.Status)
	require.NotNil(t, rec.Execution)
	require.NotNil(t, rec.Outcome)
	require.NotNil(t, rec.Score)
	assert.Equal(t, 70.0, rec.Score.Skill)
}

func TestAttachUnknownRecord(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRecorder()

	err := r.AttachExecution(ctx, "2025-03-12", "c1", "SPY", models.ExecutionFact{})
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)

	_, err = r.Get(ctx, "2025-03-12", "c1", "SPY")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestSessionRecordsPreserveOrder(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRecorder()

	for _, cycle := range []string{"c1", "c2", "c3"} {
		_, err := r.Record(ctx, session(cycle), decision("SPY", 0.1))
		require.NoError(t, err)
	}

	records, err := r.SessionRecords(ctx, "2025-03-12")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c1", records[0].Cycle)
	assert.Equal(t, "c3", records[2].Cycle)

	empty, err := r.SessionRecords(ctx, "2025-03-13")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
