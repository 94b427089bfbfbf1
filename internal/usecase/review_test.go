package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/internal/knowledge"
	"Confluence/internal/outcome"
	"Confluence/internal/recorder"
)

func recordWithScore(t *testing.T, rec *recorder.MemoryRecorder, cycle, symbol string, skill, outcomeScore float64) {
	t.Helper()
	ctx := context.Background()
	session := models.SessionContext{
		SessionID: "2025-03-12", CycleID: cycle,
		TradingDate: "2025-03-12", Phase: models.PhaseOpen,
	}
	_, err := rec.Record(ctx, session, models.Decision{
		Symbol: symbol, Slider: 0.3, Confidence: 0.6,
		Regime: models.RegimeTrending, Agreement: 2,
		Signals:       []models.Signal{models.NewSignal("orb", 0.5, 0.7, 0.4, "breakout")},
		SynthesizedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, rec.AttachExecution(ctx, session.SessionID, cycle, symbol,
		models.ExecutionFact{Quantity: 100, EntryPrice: 430, FilledAt: time.Now()}))
	require.NoError(t, rec.AttachScore(ctx, session.SessionID, cycle, symbol,
		models.RealizedOutcome{PnL: 100, ReturnPct: 0.5, Closed: true, ClosedAt: time.Now()},
		models.OutcomeScore{
			Skill: skill, Outcome: outcomeScore,
			Combined:   0.6*skill + 0.4*outcomeScore,
			LuckFactor: 0,
			Quadrant:   models.QuadrantFor(skill, outcomeScore),
			ScoredAt:   time.Now(),
		}))
}

func TestReviewWritesLessonsSummaryAndLog(t *testing.T) {
	ctx := context.Background()
	rec := recorder.NewMemoryRecorder()
	recordWithScore(t, rec, "c1", "SPY", 85, 90)
	recordWithScore(t, rec, "c2", "QQQ", 15, 20)

	dir := t.TempDir()
	store, err := knowledge.NewFileStore(knowledge.Config{BaseDir: dir}, nil, nil)
	require.NoError(t, err)

	reviewer := NewSessionReviewer(rec, store, outcome.NewDistiller(), &stubMetrics{}, testLogger(t))
	require.NoError(t, reviewer.Review(ctx, "2025-03-12"))

	kc, err := store.Retrieve(ctx, models.RetrievalQuery{})
	require.NoError(t, err)
	require.Len(t, kc.Summaries, 1)
	assert.Contains(t, kc.Summaries[0].Body, "Daily Summary 2025-03-12")
	assert.Contains(t, kc.Summaries[0].Body, "What Went Right")

	_, err = os.Stat(filepath.Join(dir, "sessions", "2025-03-12", "decisions.json"))
	assert.NoError(t, err)
}

func TestReviewIsIdempotentPerSession(t *testing.T) {
	ctx := context.Background()
	rec := recorder.NewMemoryRecorder()
	recordWithScore(t, rec, "c1", "SPY", 85, 90)

	store, err := knowledge.NewFileStore(knowledge.Config{BaseDir: t.TempDir()}, nil, nil)
	require.NoError(t, err)

	reviewer := NewSessionReviewer(rec, store, outcome.NewDistiller(), &stubMetrics{}, testLogger(t))
	require.NoError(t, reviewer.Review(ctx, "2025-03-12"))
	require.NoError(t, reviewer.Review(ctx, "2025-03-12"))

	kc, err := store.Retrieve(ctx, models.RetrievalQuery{})
	require.NoError(t, err)
	// Re-review supersedes the summary and does not duplicate lessons.
	assert.Len(t, kc.Summaries, 1)
}

func TestReviewEmptySessionIsNoop(t *testing.T) {
	store, err := knowledge.NewFileStore(knowledge.Config{BaseDir: t.TempDir()}, nil, nil)
	require.NoError(t, err)

	reviewer := NewSessionReviewer(recorder.NewMemoryRecorder(), store, outcome.NewDistiller(), &stubMetrics{}, testLogger(t))
	assert.NoError(t, reviewer.Review(context.Background(), "2025-03-12"))
}
