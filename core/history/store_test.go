package history

import (
	"testing"
	"time"
)

func TestMemoryStore_Average(t *testing.T) {
	s := NewMemoryStore(7)
	s.Append(12, Sample{GridW: 1000, SolarW: 500, BatteryW: -200, Time: time.Now()})
	s.Append(12, Sample{GridW: 2000, SolarW: 1500, BatteryW: 200, Time: time.Now()})

	avg, ok := s.Average(12)
	if !ok {
		t.Fatalf("expected samples for slot 12")
	}
	if avg.GridW != 1500 || avg.SolarW != 1000 || avg.BatteryW != 0 {
		t.Fatalf("unexpected averages: %+v", avg)
	}
	if avg.Count != 2 {
		t.Fatalf("expected 2 samples, got %d", avg.Count)
	}
}

func TestMemoryStore_EmptySlot(t *testing.T) {
	s := NewMemoryStore(7)
	if _, ok := s.Average(5); ok {
		t.Fatalf("expected no average for empty slot")
	}
	if got := s.Samples(5); len(got) != 0 {
		t.Fatalf("expected empty window, got %d", len(got))
	}
}

func TestMemoryStore_RollingWindow(t *testing.T) {
	s := NewMemoryStore(3)
	for i := 0; i < 5; i++ {
		s.Append(0, Sample{GridW: float64(i)})
	}
	win := s.Samples(0)
	if len(win) != 3 {
		t.Fatalf("expected window trimmed to 3, got %d", len(win))
	}
	if win[0].GridW != 2 || win[2].GridW != 4 {
		t.Fatalf("expected oldest samples dropped, got %+v", win)
	}
}
