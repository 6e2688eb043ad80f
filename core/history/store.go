// Package history keeps rolling windows of raw power samples, bucketed by
// interval-of-day so forecasts can average "what this slot usually looks
// like" independent of calendar date.
package history

import (
	"sync"
	"time"
)

// Sample is one raw telemetry reading. Grid net power is positive when
// importing, battery power is positive when charging.
type Sample struct {
	GridW    float64   `json:"grid_w"`
	SolarW   float64   `json:"solar_w"`
	BatteryW float64   `json:"battery_w"`
	Time     time.Time `json:"time"`
}

// Average is the per-channel mean of a slot's samples.
type Average struct {
	GridW    float64
	SolarW   float64
	BatteryW float64
	Count    int
}

// Store provides per interval-of-day sample windows to the forecaster.
type Store interface {
	Append(slot int, s Sample)
	Samples(slot int) []Sample
	Average(slot int) (Average, bool)
}

// MemoryStore keeps samples in memory, trimmed to a rolling window. The
// scheduler appends one sample per slot per day, so the window cap equals
// the configured number of days.
type MemoryStore struct {
	mu     sync.RWMutex
	window int
	data   map[int][]Sample
}

// NewMemoryStore returns a store keeping windowDays samples per slot.
func NewMemoryStore(windowDays int) *MemoryStore {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &MemoryStore{window: windowDays, data: map[int][]Sample{}}
}

// Append adds a sample to the slot's window, dropping the oldest beyond
// the rolling cap.
func (s *MemoryStore) Append(slot int, smp Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	win := append(s.data[slot], smp)
	if len(win) > s.window {
		win = win[len(win)-s.window:]
	}
	s.data[slot] = win
}

// Samples returns a copy of the slot's window, oldest first.
func (s *MemoryStore) Samples(slot int) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	win := s.data[slot]
	out := make([]Sample, len(win))
	copy(out, win)
	return out
}

// Average returns the per-channel mean for the slot. The second return is
// false when the slot has no samples yet.
func (s *MemoryStore) Average(slot int) (Average, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	win := s.data[slot]
	if len(win) == 0 {
		return Average{}, false
	}
	var avg Average
	for _, smp := range win {
		avg.GridW += smp.GridW
		avg.SolarW += smp.SolarW
		avg.BatteryW += smp.BatteryW
	}
	n := float64(len(win))
	avg.GridW /= n
	avg.SolarW /= n
	avg.BatteryW /= n
	avg.Count = len(win)
	return avg, true
}
