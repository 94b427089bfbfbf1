package features

import (
	"math"

	"Confluence/internal/domain/models"
)

// LogReturns computes r_t = ln(C_t / C_{t-1}) over a close series.
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes the per-bar sigma of log returns over the
// trailing window. Returns 0 when the window cannot be filled.
func RealizedVolatility(logReturns []float64, window int) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// RangeProxy approximates a 14-bar average true range from close-to-close
// movement. True range needs highs and lows per bar; absolute close deltas
// are the usable proxy when the feed sends only closes.
func RangeProxy(closes []float64, window int) float64 {
	if window <= 0 || len(closes) < window+1 {
		return 0
	}
	sum := 0.0
	for i := len(closes) - window; i < len(closes); i++ {
		sum += math.Abs(closes[i] - closes[i-1])
	}
	return sum / float64(window)
}

// RateOfChange returns the percent move of the last close against the
// close lookback bars earlier.
func RateOfChange(closes []float64, lookback int) float64 {
	if lookback <= 0 || len(closes) < lookback+1 {
		return 0
	}
	base := closes[len(closes)-1-lookback]
	if base <= 0 {
		return 0
	}
	return (closes[len(closes)-1]/base - 1) * 100
}

// Backfill fills the indicators regime classification depends on when the
// feed omits them and a close series is present. Provider-computed values
// are never overwritten.
func Backfill(snap *models.MarketSnapshot) {
	if snap == nil || snap.Indicators == nil {
		return
	}
	closes := snap.Series["close"]
	if len(closes) < 15 {
		return
	}

	if _, ok := snap.Indicator(models.IndATR14); !ok {
		if atr := RangeProxy(closes, 14); atr > 0 {
			snap.Indicators[models.IndATR14] = atr
		}
	}
	if _, ok := snap.Indicator(models.IndMomentum); !ok {
		snap.Indicators[models.IndMomentum] = RateOfChange(closes, 10)
	}
	if _, ok := snap.Indicator(models.IndPrice); !ok {
		snap.Indicators[models.IndPrice] = closes[len(closes)-1]
	}
}
