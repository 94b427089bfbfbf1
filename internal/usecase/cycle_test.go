package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	domrepo "Confluence/internal/domain/repository"
	"Confluence/internal/knowledge"
	"Confluence/internal/recorder"
	"Confluence/pkg/logger"
)

type stubMetrics struct {
	errors []string
	cycles []string
}

func (m *stubMetrics) RecordCycle(_, status string) { m.cycles = append(m.cycles, status) }

func (m *stubMetrics) RecordSignal(string, string) {}

func (m *stubMetrics) RecordError(kind string) { m.errors = append(m.errors, kind) }

func (m *stubMetrics) RecordSlider(string, float64) {}

func (m *stubMetrics) RecordScore(string, float64) {}

func (m *stubMetrics) RecordLatency(string, float64) {}

func (m *stubMetrics) RecordKnowledgeWrite(string, string) {}

type stubRunner struct {
	signals []models.Signal
	err     error
	gotKC   *models.KnowledgeContext
}

func (r *stubRunner) Run(_ context.Context, _ *models.MarketSnapshot, kc *models.KnowledgeContext) ([]models.Signal, error) {
	r.gotKC = kc
	return r.signals, r.err
}

type stubPolicy struct {
	decision models.Decision
}

func (p *stubPolicy) Synthesize(_ context.Context, _ models.SessionContext, snap *models.MarketSnapshot, _ []models.Signal, _ *models.KnowledgeContext) models.Decision {
	d := p.decision
	d.Symbol = snap.Symbol
	return d
}

type stubPublisher struct {
	published []models.Decision
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, _ models.SessionContext, d models.Decision) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, d)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func testStore(t *testing.T) *knowledge.FileStore {
	t.Helper()
	store, err := knowledge.NewFileStore(knowledge.Config{BaseDir: t.TempDir()}, nil, nil)
	require.NoError(t, err)
	return store
}

func cycleSnapshot() *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:    "SPY",
		Timestamp: time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC),
		Phase:     models.PhaseOpen,
		Indicators: map[string]float64{
			models.IndPrice: 430,
		},
	}
}

func newCycleRunner(t *testing.T, run *stubRunner, rec domrepo.DecisionRecorder, pub *stubPublisher, m *stubMetrics) *CycleRunner {
	t.Helper()
	policy := &stubPolicy{decision: models.Decision{
		Slider: 0.3, Confidence: 0.6, Regime: models.RegimeTrending,
		Agreement: 2, SynthesizedAt: time.Now(),
	}}
	return NewCycleRunner(run, policy, rec, testStore(t), pub, m, testLogger(t), time.UTC)
}

func TestCycleRecordsAndPublishes(t *testing.T) {
	run := &stubRunner{signals: []models.Signal{models.NewSignal("orb", 0.5, 0.7, 0.4, "breakout")}}
	rec := recorder.NewMemoryRecorder()
	pub := &stubPublisher{}
	metrics := &stubMetrics{}
	c := newCycleRunner(t, run, rec, pub, metrics)

	decision, err := c.Run(context.Background(), cycleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "SPY", decision.Symbol)
	assert.Equal(t, 0.3, decision.Slider)

	require.Len(t, pub.published, 1)
	records, err := rec.SessionRecords(context.Background(), "2025-03-12")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusPendingExecution, records[0].Status)
	assert.Equal(t, []string{"ok"}, metrics.cycles)
}

func TestCycleCancelledProducesNoDecision(t *testing.T) {
	run := &stubRunner{err: context.Canceled}
	rec := recorder.NewMemoryRecorder()
	pub := &stubPublisher{}
	c := newCycleRunner(t, run, rec, pub, &stubMetrics{})

	_, err := c.Run(context.Background(), cycleSnapshot())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, pub.published)
	records, err := rec.SessionRecords(context.Background(), "2025-03-12")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCycleDuplicateRecordStillPublishes(t *testing.T) {
	run := &stubRunner{}
	rec := recorder.NewMemoryRecorder()
	pub := &stubPublisher{}
	metrics := &stubMetrics{}
	c := newCycleRunner(t, run, rec, pub, metrics)

	snap := cycleSnapshot()
	_, err := c.Run(context.Background(), snap)
	require.NoError(t, err)

	// Same snapshot timestamp replays the same (session, cycle, symbol).
	decision, err := c.Run(context.Background(), snap)
	assert.ErrorIs(t, err, domrepo.ErrDuplicateRecord)
	assert.Equal(t, "SPY", decision.Symbol)
	assert.Len(t, pub.published, 2)
	assert.Contains(t, metrics.errors, "record")
}

func TestCyclePublishFailureDoesNotFailCycle(t *testing.T) {
	run := &stubRunner{}
	rec := recorder.NewMemoryRecorder()
	pub := &stubPublisher{err: errors.New("broker down")}
	metrics := &stubMetrics{}
	c := newCycleRunner(t, run, rec, pub, metrics)

	decision, err := c.Run(context.Background(), cycleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "SPY", decision.Symbol)
	assert.Contains(t, metrics.errors, "publish")
	assert.Equal(t, []string{"publish_failed"}, metrics.cycles)
}

func TestCyclePassesKnowledgeContextToRunner(t *testing.T) {
	run := &stubRunner{}
	c := newCycleRunner(t, run, recorder.NewMemoryRecorder(), &stubPublisher{}, &stubMetrics{})

	_, err := c.Run(context.Background(), cycleSnapshot())
	require.NoError(t, err)
	assert.NotNil(t, run.gotKC)
}
