package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"Confluence/internal/domain/models"
)

func regimeSnap(indicators map[string]float64) *models.MarketSnapshot {
	return &models.MarketSnapshot{Symbol: "SPY", Indicators: indicators}
}

func TestClassifyTrending(t *testing.T) {
	d := NewRegimeDetector()
	regime, conf := d.Classify(regimeSnap(map[string]float64{
		models.IndADX:            32,
		models.IndBollingerWidth: 1.4,
		models.IndKeltnerWidth:   1.0,
		models.IndATR14:          0.5,
		models.IndPrice:          100,
		models.IndMomentum:       1.2,
	}))

	// ADX and the momentum read vote trending, band expansion votes
	// volatile: two against one.
	assert.Equal(t, models.RegimeTrending, regime)
	assert.InDelta(t, 1.0/3.0, conf, 1e-9)
}

func TestClassifyRanging(t *testing.T) {
	d := NewRegimeDetector()
	regime, conf := d.Classify(regimeSnap(map[string]float64{
		models.IndADX:            12,
		models.IndBollingerWidth: 0.7,
		models.IndKeltnerWidth:   1.0,
		models.IndATR14:          0.5,
		models.IndPrice:          100,
		models.IndMomentum:       0.1,
	}))

	assert.Equal(t, models.RegimeRanging, regime)
	assert.InDelta(t, 1.0, conf, 1e-9)
}

func TestClassifyVolatile(t *testing.T) {
	d := NewRegimeDetector()
	regime, _ := d.Classify(regimeSnap(map[string]float64{
		models.IndADX:            21,
		models.IndBollingerWidth: 1.5,
		models.IndKeltnerWidth:   1.0,
		models.IndATR14:          4,
		models.IndPrice:          100,
	}))

	assert.Equal(t, models.RegimeVolatile, regime)
}

func TestClassifyTieIsTransitioning(t *testing.T) {
	d := NewRegimeDetector()
	regime, conf := d.Classify(regimeSnap(map[string]float64{
		models.IndADX:            30,
		models.IndBollingerWidth: 0.7,
		models.IndKeltnerWidth:   1.0,
	}))

	// One trending vote against one ranging vote.
	assert.Equal(t, models.RegimeTransitioning, regime)
	assert.Zero(t, conf)
}

func TestClassifyNoIndicators(t *testing.T) {
	d := NewRegimeDetector()
	regime, conf := d.Classify(regimeSnap(nil))
	assert.Equal(t, models.RegimeTransitioning, regime)
	assert.Zero(t, conf)
}
