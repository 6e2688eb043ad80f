package model

import (
	"testing"
	"time"
)

func TestStrategyModeAt(t *testing.T) {
	base := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	s := &Strategy{
		ChargeIntervals: []PlannedInterval{
			{PriceInterval: PriceInterval{StartsAt: base}, EnergyKWh: 1},
		},
		DischargeIntervals: []PlannedInterval{
			{PriceInterval: PriceInterval{StartsAt: base.Add(30 * time.Minute)}, EnergyKWh: 1},
		},
	}

	if got := s.ModeAt(base.Add(5 * time.Minute)); got != ModeCharge {
		t.Errorf("inside charge slot: got %v", got)
	}
	if got := s.ModeAt(base.Add(35 * time.Minute)); got != ModeDischarge {
		t.Errorf("inside discharge slot: got %v", got)
	}
	if got := s.ModeAt(base.Add(20 * time.Minute)); got != ModeIdle {
		t.Errorf("unplanned slot: got %v", got)
	}
}

func TestStrategyModeAtDischargeWins(t *testing.T) {
	base := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	slot := PriceInterval{StartsAt: base}
	s := &Strategy{
		ChargeIntervals:    []PlannedInterval{{PriceInterval: slot, EnergyKWh: 1}},
		DischargeIntervals: []PlannedInterval{{PriceInterval: slot, EnergyKWh: 1}},
	}
	if got := s.ModeAt(base); got != ModeDischarge {
		t.Fatalf("conflicting slot: got %v, want discharge", got)
	}
}

func TestStrategyModeAtNil(t *testing.T) {
	var s *Strategy
	if got := s.ModeAt(time.Now()); got != ModeIdle {
		t.Fatalf("nil strategy: got %v, want idle", got)
	}
}

func TestBatteryModeString(t *testing.T) {
	cases := map[BatteryMode]string{
		ModeIdle:      "idle",
		ModeCharge:    "charge",
		ModeDischarge: "discharge",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", mode, got, want)
		}
	}
}
