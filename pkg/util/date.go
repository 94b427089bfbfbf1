package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// TradingDay formats a timestamp as a YYYY-MM-DD trading date in the given location.
func TradingDay(t time.Time, loc *time.Location) string {
    if loc != nil {
        t = t.In(loc)
    }
    return t.Format("2006-01-02")
}

// MinutesOfDay returns minutes elapsed since local midnight.
func MinutesOfDay(t time.Time, loc *time.Location) int {
    if loc != nil {
        t = t.In(loc)
    }
    return t.Hour()*60 + t.Minute()
}