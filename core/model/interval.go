package model

import "time"

const (
	// IntervalDuration is the fixed resolution of the spot price series.
	IntervalDuration = 15 * time.Minute
	// IntervalHours is IntervalDuration expressed in hours.
	IntervalHours = 0.25
	// IntervalsPerDay is the number of price slots per calendar day.
	IntervalsPerDay = 96
)

// PriceInterval is a single spot price slot. Index values are unique and
// increasing within a series but not necessarily dense, so per-slot arrays
// must be addressed by position in the series, never by Index.
type PriceInterval struct {
	StartsAt      time.Time `json:"startsAt"`
	Total         float64   `json:"total"` // price in currency/kWh
	Index         int       `json:"index"`
	IntervalOfDay int       `json:"intervalOfDay"` // 0..IntervalsPerDay-1
}

// End returns the exclusive end of the slot.
func (p PriceInterval) End() time.Time {
	return p.StartsAt.Add(IntervalDuration)
}

// Contains reports whether t falls inside the slot.
func (p PriceInterval) Contains(t time.Time) bool {
	return !t.Before(p.StartsAt) && t.Before(p.End())
}

// SlotOfDay returns the interval-of-day bucket for t in its own location.
func SlotOfDay(t time.Time) int {
	return (t.Hour()*60 + t.Minute()) / int(IntervalDuration.Minutes())
}

// PruneElapsed drops intervals that ended at or before now, keeping the
// slot containing now and everything after it.
func PruneElapsed(series []PriceInterval, now time.Time) []PriceInterval {
	i := 0
	for i < len(series) && !series[i].End().After(now) {
		i++
	}
	return series[i:]
}

// AveragePrice returns the mean price of the series, 0 when empty.
func AveragePrice(series []PriceInterval) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, p := range series {
		sum += p.Total
	}
	return sum / float64(len(series))
}
