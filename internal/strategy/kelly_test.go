package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Confluence/internal/domain/models"
)

func TestKellyFractionExactFormula(t *testing.T) {
	// f* = (1.5*0.75 - 0.25) / 1.5 = 0.58333...
	f := KellyFraction(0.75, 1.5)
	assert.InDelta(t, 0.5833333333, f, 1e-9)
}

func TestKellyFractionNegativeExpectancy(t *testing.T) {
	assert.Zero(t, KellyFraction(0.3, 1.0))
	assert.Zero(t, KellyFraction(0.5, 1.0))
	assert.Zero(t, KellyFraction(0.9, 0))
}

func TestKellyFractionClampsToOne(t *testing.T) {
	assert.Equal(t, 1.0, KellyFraction(1.0, 0.1))
}

func TestKellySizerPhaseCaps(t *testing.T) {
	sizer := NewKellySizer(nil)

	sized, raw := sizer.Size(0.75, 1.5, models.PhaseLunch)
	require.InDelta(t, 0.5833333333, raw, 1e-9)
	assert.Equal(t, 0.10, sized, "lunch cap must bound exposure")

	sized, _ = sizer.Size(0.75, 1.5, models.PhaseOpen)
	assert.Equal(t, 0.50, sized, "open cap bounds the raw fraction")

	sized, _ = sizer.Size(0.55, 1.2, models.PhaseOpen)
	assert.Less(t, sized, 0.50, "fractions under the cap pass through")
}

func TestKellySizerCustomCapOverride(t *testing.T) {
	sizer := NewKellySizer(map[models.SessionPhase]float64{
		models.PhaseLunch: 0.2,
	})
	sized, _ := sizer.Size(0.75, 1.5, models.PhaseLunch)
	assert.Equal(t, 0.2, sized)

	// Unmentioned phases keep their defaults.
	assert.Equal(t, 0.25, sizer.PhaseCap(models.PhasePreMarket))
}
