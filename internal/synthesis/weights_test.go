package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
	"Confluence/internal/strategy"
)

func TestDefaultBaseWeightsSumToOne(t *testing.T) {
	assert.NoError(t, ValidateWeights(DefaultBaseWeights()))
}

func TestValidateWeights(t *testing.T) {
	assert.Error(t, ValidateWeights(map[string]float64{
		strategy.NameORB: -0.1, strategy.NameGap: 1.1,
	}))
	assert.Error(t, ValidateWeights(map[string]float64{
		strategy.NameORB: 0.5, strategy.NameGap: 0.3,
	}))
	assert.NoError(t, ValidateWeights(map[string]float64{
		strategy.NameORB: 0.5, strategy.NameGap: 0.5,
	}))
}

func TestNewWeightTableEmptyFallsBackToDefaults(t *testing.T) {
	wt, err := NewWeightTable(nil)
	require.NoError(t, err)

	weights := wt.ForPhase(models.SessionPhase("unknown"))
	assert.InDelta(t, 0.25, weights[strategy.NameORB], 1e-9)
}

func TestNewWeightTableRejectsBadWeights(t *testing.T) {
	_, err := NewWeightTable(map[string]float64{strategy.NameORB: 0.9})
	assert.Error(t, err)
}

func TestForPhaseOpenShiftsTowardBreakouts(t *testing.T) {
	wt, err := NewWeightTable(nil)
	require.NoError(t, err)

	weights := wt.ForPhase(models.PhaseOpen)
	assert.InDelta(t, 0.35, weights[strategy.NameORB], 1e-9)
	assert.InDelta(t, 0.20, weights[strategy.NameGap], 1e-9)
	assert.InDelta(t, 0.20, weights[strategy.NameSqueeze], 1e-9)
	assert.InDelta(t, 0.15, weights[strategy.NameMeanReversion], 1e-9)
	assert.InDelta(t, 0.10, weights[strategy.NameOvernight], 1e-9)
}

func TestForPhaseAlwaysNormalized(t *testing.T) {
	wt, err := NewWeightTable(nil)
	require.NoError(t, err)

	phases := []models.SessionPhase{
		models.PhasePreMarket, models.PhaseOpen, models.PhaseLunch,
		models.PhasePowerHour, models.PhaseAfterMarket, models.PhaseOvernight,
	}
	for _, phase := range phases {
		var sum float64
		for _, w := range wt.ForPhase(phase) {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "phase %s", phase)
	}
}

func TestForPhaseFloorsNegativeShifts(t *testing.T) {
	wt, err := NewWeightTable(map[string]float64{
		strategy.NameORB:       0.05,
		strategy.NameOvernight: 0.05,
		strategy.NameSqueeze:   0.90,
	})
	require.NoError(t, err)

	// Pre-market shifts orb by -0.15; it floors at zero instead of going
	// negative.
	weights := wt.ForPhase(models.PhasePreMarket)
	assert.Zero(t, weights[strategy.NameORB])

	var sum float64
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
