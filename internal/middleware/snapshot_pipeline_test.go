package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/pkg/logger"
)

type countingProc struct {
	runs int
}

func (p *countingProc) Run(_ context.Context, _ *models.MarketSnapshot) (models.Decision, error) {
	p.runs++
	return models.Decision{}, nil
}

type pipelineMetrics struct {
	errors []string
}

func (m *pipelineMetrics) RecordCycle(string, string)          {}
func (m *pipelineMetrics) RecordSignal(string, string)         {}
func (m *pipelineMetrics) RecordError(kind string)             { m.errors = append(m.errors, kind) }
func (m *pipelineMetrics) RecordSlider(string, float64)        {}
func (m *pipelineMetrics) RecordScore(string, float64)         {}
func (m *pipelineMetrics) RecordLatency(string, float64)       {}
func (m *pipelineMetrics) RecordKnowledgeWrite(string, string) {}

func pipelineLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func validSnap(symbol string) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:     symbol,
		Timestamp:  time.Now(),
		Phase:      models.PhaseOpen,
		Indicators: map[string]float64{models.IndPrice: 100},
	}
}

func TestPipelineRejectsInvalidSnapshots(t *testing.T) {
	proc := &countingProc{}
	metrics := &pipelineMetrics{}
	p := NewSnapshotPipeline(proc, metrics, pipelineLogger(t))

	assert.Error(t, p.Process(context.Background(), nil))
	assert.Error(t, p.Process(context.Background(), &models.MarketSnapshot{Symbol: "SPY"}))
	assert.Zero(t, proc.runs)
	assert.Contains(t, metrics.errors, "pipeline_validate")
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &countingProc{}
	metrics := &pipelineMetrics{}
	p := NewSnapshotPipeline(proc, metrics, pipelineLogger(t), WithMinInterval(time.Hour))

	require.NoError(t, p.Process(context.Background(), validSnap("SPY")))
	require.NoError(t, p.Process(context.Background(), validSnap("SPY")))
	assert.Equal(t, 1, proc.runs)
	assert.Contains(t, metrics.errors, "pipeline_throttle")

	// A different symbol is not throttled by SPY's window.
	require.NoError(t, p.Process(context.Background(), validSnap("QQQ")))
	assert.Equal(t, 2, proc.runs)
}
