package synthesis

import (
	"Confluence/internal/domain/models"
)

// RegimeDetector classifies market behavior by majority vote of three
// independent indicator reads: trend strength, band compression, and range
// expansion. Confidence is the vote margin; no majority means the market is
// transitioning.
type RegimeDetector struct {
	// ADX at or above TrendADX votes trending; below RangeADX votes ranging.
	TrendADX float64
	RangeADX float64

	// Band width ratio (Bollinger/Keltner) below CompressionRatio votes
	// ranging, above ExpansionRatio votes volatile.
	CompressionRatio float64
	ExpansionRatio   float64

	// ATR as a fraction of price above VolATRPct votes volatile.
	VolATRPct float64
}

func NewRegimeDetector() *RegimeDetector {
	return &RegimeDetector{
		TrendADX:         25,
		RangeADX:         18,
		CompressionRatio: 0.85,
		ExpansionRatio:   1.3,
		VolATRPct:        0.025,
	}
}

// Classify returns the majority regime and a confidence equal to the vote
// margin over the total votes cast.
func (d *RegimeDetector) Classify(snap *models.MarketSnapshot) (models.Regime, float64) {
	votes := map[models.Regime]int{}
	total := 0

	if adx, ok := snap.Indicator(models.IndADX); ok {
		total++
		switch {
		case adx >= d.TrendADX:
			votes[models.RegimeTrending]++
		case adx < d.RangeADX:
			votes[models.RegimeRanging]++
		default:
			votes[models.RegimeTransitioning]++
		}
	}

	bbw, okB := snap.Indicator(models.IndBollingerWidth)
	kcw, okK := snap.Indicator(models.IndKeltnerWidth)
	if okB && okK && kcw > 0 {
		total++
		ratio := bbw / kcw
		switch {
		case ratio <= d.CompressionRatio:
			votes[models.RegimeRanging]++
		case ratio >= d.ExpansionRatio:
			votes[models.RegimeVolatile]++
		default:
			votes[models.RegimeTransitioning]++
		}
	}

	atr, okA := snap.Indicator(models.IndATR14)
	price, okP := snap.Indicator(models.IndPrice)
	if okA && okP && price > 0 {
		total++
		if atr/price >= d.VolATRPct {
			votes[models.RegimeVolatile]++
		} else if momentum, ok := snap.Indicator(models.IndMomentum); ok && absf(momentum) > 0.5 {
			votes[models.RegimeTrending]++
		} else {
			votes[models.RegimeRanging]++
		}
	}

	if total == 0 {
		return models.RegimeTransitioning, 0
	}

	best, second := models.RegimeTransitioning, 0
	bestVotes := 0
	for regime, n := range votes {
		if n > bestVotes {
			second = bestVotes
			best, bestVotes = regime, n
		} else if n > second {
			second = n
		}
	}

	if bestVotes <= second {
		return models.RegimeTransitioning, 0
	}
	confidence := float64(bestVotes-second) / float64(total)
	return best, confidence
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
