package models

import "time"

// SessionPhase identifies the intraday trading session window.
type SessionPhase string

const (
	PhasePreMarket   SessionPhase = "pre_market"
	PhaseOpen        SessionPhase = "open"
	PhaseLunch       SessionPhase = "lunch"
	PhasePowerHour   SessionPhase = "power_hour"
	PhaseAfterMarket SessionPhase = "after_market"
	PhaseOvernight   SessionPhase = "overnight"
)

// phase window boundaries in minutes since midnight, exchange local time
const (
	preMarketStart   = 4 * 60
	openStart        = 9*60 + 30
	lunchStart       = 11 * 60
	powerHourStart   = 14 * 60
	afterMarketStart = 16 * 60
	overnightStart   = 20 * 60
)

// PhaseAt resolves the session phase for a timestamp in the exchange location.
func PhaseAt(t time.Time, loc *time.Location) SessionPhase {
	if loc != nil {
		t = t.In(loc)
	}
	m := t.Hour()*60 + t.Minute()

	switch {
	case m >= preMarketStart && m < openStart:
		return PhasePreMarket
	case m >= openStart && m < lunchStart:
		return PhaseOpen
	case m >= lunchStart && m < powerHourStart:
		return PhaseLunch
	case m >= powerHourStart && m < afterMarketStart:
		return PhasePowerHour
	case m >= afterMarketStart && m < overnightStart:
		return PhaseAfterMarket
	default:
		return PhaseOvernight
	}
}

// Indicator names expected in MarketSnapshot.Indicators.
const (
	IndPrice          = "price"
	IndVWAP           = "vwap"
	IndRSI14          = "rsi_14"
	IndRSI2           = "rsi_2"
	IndSMA20          = "sma_20"
	IndEMA9           = "ema_9"
	IndATR14          = "atr_14"
	IndADX            = "adx"
	IndRelVolume      = "rel_volume"
	IndBollingerWidth = "bb_width"
	IndKeltnerWidth   = "kc_width"
	IndSqueezeBars    = "squeeze_bars"
	IndMomentum       = "momentum"
)

// GapContext carries the overnight gap auxiliary data for gap strategies.
type GapContext struct {
	PrevClose float64
	OpenPrice float64
	GapPct    float64
}

// OpeningRange is the high/low of the first minutes after the open.
type OpeningRange struct {
	High        float64
	Low         float64
	Established bool
}

// OvernightRange covers the extended-hours range since the prior close.
type OvernightRange struct {
	High  float64
	Low   float64
	Close float64
}

// MarketSnapshot is the normalized indicator bundle for one symbol at one
// timestamp. It is immutable once created and owned by the cycle that built it.
type MarketSnapshot struct {
	Symbol     string
	Timestamp  time.Time
	Phase      SessionPhase
	Indicators map[string]float64
	Series     map[string][]float64

	Gap            *GapContext
	OpeningRange   *OpeningRange
	OvernightRange *OvernightRange
}

// Indicator returns a named indicator value and whether it is present.
func (s *MarketSnapshot) Indicator(name string) (float64, bool) {
	if s == nil || s.Indicators == nil {
		return 0, false
	}
	v, ok := s.Indicators[name]
	return v, ok
}

// IndicatorOr returns a named indicator or the fallback when absent.
func (s *MarketSnapshot) IndicatorOr(name string, def float64) float64 {
	if v, ok := s.Indicator(name); ok {
		return v
	}
	return def
}
