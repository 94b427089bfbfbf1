package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/pkg/logger"
)

type stubMetrics struct {
	errors []string
}

func (m *stubMetrics) RecordCycle(string, string)          {}
func (m *stubMetrics) RecordSignal(string, string)         {}
func (m *stubMetrics) RecordError(kind string)             { m.errors = append(m.errors, kind) }
func (m *stubMetrics) RecordSlider(string, float64)        {}
func (m *stubMetrics) RecordScore(string, float64)         {}
func (m *stubMetrics) RecordLatency(string, float64)       {}
func (m *stubMetrics) RecordKnowledgeWrite(string, string) {}

type slowEvaluator struct {
	delay time.Duration
}

func (s *slowEvaluator) Name() string { return "slow" }

func (s *slowEvaluator) Evaluate(ctx context.Context, _ *models.MarketSnapshot, _ *models.KnowledgeContext) models.Signal {
	select {
	case <-time.After(s.delay):
		return models.NewSignal("slow", 0.5, 0.6, 0.5, "finished")
	case <-ctx.Done():
		return models.NeutralSignal("slow", "cancelled")
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func TestRunnerJoinsAllEvaluators(t *testing.T) {
	sizer := NewKellySizer(nil)
	runner := NewRunner(DefaultRegistry(sizer), time.Second, testLogger(t), &stubMetrics{})

	snap := snapshot(models.PhaseOpen, map[string]float64{
		models.IndPrice: 100,
		models.IndATR14: 2,
	})

	signals, err := runner.Run(context.Background(), snap, nil)
	require.NoError(t, err)
	assert.Len(t, signals, 5)
	for _, sig := range signals {
		assert.NoError(t, sig.Validate())
	}
}

func TestRunnerTimeoutYieldsNeutralSignal(t *testing.T) {
	metrics := &stubMetrics{}
	reg := NewRegistry(&slowEvaluator{delay: time.Second})
	runner := NewRunner(reg, 20*time.Millisecond, testLogger(t), metrics)

	signals, err := runner.Run(context.Background(), snapshot(models.PhaseOpen, nil), nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Zero(t, signals[0].Slider)
	assert.Contains(t, signals[0].Rationale, "timed out")
	assert.Contains(t, metrics.errors, "evaluator_timeout")
}

func TestRunnerCancelledCycleDiscardsPartials(t *testing.T) {
	reg := NewRegistry(&slowEvaluator{delay: 200 * time.Millisecond})
	runner := NewRunner(reg, time.Second, testLogger(t), &stubMetrics{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	signals, err := runner.Run(ctx, snapshot(models.PhaseOpen, nil), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, signals)
}
