package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/homebatt/homebatt/core/forecast"
	"github.com/homebatt/homebatt/core/history"
	"github.com/homebatt/homebatt/core/model"
)

// stubHistory provides fixed per-slot averages to the forecaster.
type stubHistory map[int]history.Average

func (s stubHistory) Append(int, history.Sample)   {}
func (s stubHistory) Samples(int) []history.Sample { return nil }
func (s stubHistory) Average(slot int) (history.Average, bool) {
	a, ok := s[slot]
	return a, ok
}

// demandW converts a per-slot import demand in kWh into a grid power sample.
func demandW(kWh float64) history.Average {
	return history.Average{GridW: kWh / model.IntervalHours * 1000, Count: 1}
}

// surplusW builds a sample with the given solar surplus and zero load.
func surplusW(kWh float64) history.Average {
	w := kWh / model.IntervalHours * 1000
	return history.Average{GridW: -w, SolarW: w, Count: 1}
}

// idle is a slot with no load and no solar.
var idle = history.Average{Count: 1}

func buildSeries(prices ...float64) []model.PriceInterval {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	out := make([]model.PriceInterval, len(prices))
	for i, p := range prices {
		out[i] = model.PriceInterval{
			StartsAt:      base.Add(time.Duration(i) * model.IntervalDuration),
			Total:         p,
			Index:         10 + i*2, // not dense on purpose
			IntervalOfDay: i,
		}
	}
	return out
}

func defaultParams() model.BatteryParams {
	return model.BatteryParams{
		CapacityKWh:          10,
		CurrentSoC:           0,
		TargetSoC:            0.9,
		ChargePowerKW:        10, // 2.5 kWh per slot
		EfficiencyLoss:       0.1,
		ExpensivePriceFactor: 1.3,
		MinProfitPerKWh:      0.05,
	}
}

func schedule(t *testing.T, series []model.PriceInterval, params model.BatteryParams, hist stubHistory) *model.Strategy {
	t.Helper()
	fc := forecast.New(series, hist)
	return NewHeuristic(Config{FeedInTariff: 0.08, ExpensiveQuantile: 0.7}).Schedule(series, params, fc)
}

func TestHeuristic_FlatPricesNoAction(t *testing.T) {
	series := buildSeries(0.25, 0.25, 0.25, 0.25, 0.25, 0.25)
	hist := stubHistory{}
	for i := range series {
		hist[i] = demandW(1)
	}
	s := schedule(t, series, defaultParams(), hist)
	if len(s.ChargeIntervals) != 0 || len(s.DischargeIntervals) != 0 {
		t.Fatalf("flat prices must plan nothing: %+v", s)
	}
	if s.Savings != 0 {
		t.Fatalf("expected zero savings, got %v", s.Savings)
	}
}

func TestHeuristic_EmptySeries(t *testing.T) {
	s := schedule(t, nil, defaultParams(), stubHistory{})
	if s == nil {
		t.Fatalf("heuristic must not fail on empty input")
	}
	if len(s.ChargeIntervals) != 0 || s.NeededKWh != 0 {
		t.Fatalf("expected no-op strategy, got %+v", s)
	}
}

func TestHeuristic_PairsCheapWithExpensive(t *testing.T) {
	// Cheap morning, expensive evening, demand only in the evening.
	series := buildSeries(0.10, 0.10, 0.12, 0.50, 0.55)
	hist := stubHistory{0: idle, 1: idle, 2: idle, 3: demandW(2), 4: demandW(2)}
	s := schedule(t, series, defaultParams(), hist)

	if len(s.DischargeIntervals) != 2 {
		t.Fatalf("expected both expensive slots selected, got %d", len(s.DischargeIntervals))
	}
	if len(s.ChargeIntervals) == 0 {
		t.Fatalf("expected charge slots assigned")
	}
	// Charging must happen before discharging.
	lastCharge := s.ChargeIntervals[len(s.ChargeIntervals)-1]
	if !lastCharge.StartsAt.Before(s.DischargeIntervals[0].StartsAt) {
		t.Fatalf("charge slot %v not before discharge %v", lastCharge.StartsAt, s.DischargeIntervals[0].StartsAt)
	}
	if s.Savings <= 0 {
		t.Fatalf("expected positive savings, got %v", s.Savings)
	}
	// Energy conservation: new charging funds the full selected demand
	// (no existing energy available at SoC 0).
	if s.NeededKWh+1e-9 < s.ForecastedDemandKWh {
		t.Fatalf("charged %v kWh but promised %v kWh", s.NeededKWh, s.ForecastedDemandKWh)
	}
}

func TestHeuristic_Idempotent(t *testing.T) {
	series := buildSeries(0.10, 0.15, 0.12, 0.50, 0.48)
	hist := stubHistory{0: idle, 1: surplusW(1), 2: idle, 3: demandW(2), 4: demandW(1)}
	a := schedule(t, series, defaultParams(), hist)
	b := schedule(t, series, defaultParams(), hist)

	if len(a.ChargeIntervals) != len(b.ChargeIntervals) || len(a.DischargeIntervals) != len(b.DischargeIntervals) {
		t.Fatalf("runs differ: %+v vs %+v", a, b)
	}
	for i := range a.ChargeIntervals {
		if a.ChargeIntervals[i] != b.ChargeIntervals[i] {
			t.Fatalf("charge slot %d differs", i)
		}
	}
	if a.Savings != b.Savings {
		t.Fatalf("savings differ: %v vs %v", a.Savings, b.Savings)
	}
}

func TestHeuristic_AtTargetSoCNoCharging(t *testing.T) {
	series := buildSeries(0.10, 0.10, 0.50, 0.55)
	hist := stubHistory{0: idle, 1: idle, 2: demandW(2), 3: demandW(2)}
	params := defaultParams()
	params.CurrentSoC = 0.9         // same as target
	params.BatteryCostPerKWh = 0.60 // existing energy too expensive to use

	s := schedule(t, series, params, hist)
	if len(s.ChargeIntervals) != 0 || s.NeededKWh != 0 {
		t.Fatalf("no headroom must mean no charging: %+v", s.ChargeIntervals)
	}
}

func TestHeuristic_SpreadBelowMinProfit(t *testing.T) {
	// 0.30 -> 0.40 spread: 0.40 - 0.30*1.1 = 0.07 < 0.10 margin.
	series := buildSeries(0.30, 0.30, 0.30, 0.40, 0.40)
	hist := stubHistory{}
	for i := range series {
		hist[i] = demandW(1)
	}
	params := defaultParams()
	params.MinProfitPerKWh = 0.10
	params.ExpensivePriceFactor = 1.1

	s := schedule(t, series, params, hist)
	if len(s.ChargeIntervals) != 0 {
		t.Fatalf("unprofitable spread must select nothing, got %+v", s.ChargeIntervals)
	}
	if s.Savings != 0 {
		t.Fatalf("expected zero savings, got %v", s.Savings)
	}
}

func TestHeuristic_ProfitabilityGateHolds(t *testing.T) {
	series := buildSeries(0.10, 0.28, 0.05, 0.50, 0.60, 0.45)
	hist := stubHistory{0: idle, 1: idle, 2: surplusW(0.5), 3: demandW(1.5), 4: demandW(2), 5: demandW(1)}
	params := defaultParams()
	s := schedule(t, series, params, hist)

	for _, d := range s.DischargeIntervals {
		for _, c := range s.ChargeIntervals {
			if !c.StartsAt.Before(d.StartsAt) {
				continue
			}
			price := c.Total
			if c.SolarSourced {
				price = 0.08
			}
			if d.Total-price*(1+params.EfficiencyLoss) <= params.MinProfitPerKWh {
				t.Fatalf("pairing %v -> %v violates profit gate", c.StartsAt, d.StartsAt)
			}
		}
	}
}

func TestHeuristic_CapacityBound(t *testing.T) {
	series := buildSeries(0.05, 0.05, 0.05, 0.05, 0.55, 0.60, 0.65, 0.70)
	hist := stubHistory{}
	for i := 0; i < 4; i++ {
		hist[i] = idle
	}
	for i := 4; i < 8; i++ {
		hist[i] = demandW(2.4)
	}
	params := defaultParams()
	params.CapacityKWh = 5
	params.TargetSoC = 0.8 // 4 kWh headroom

	s := schedule(t, series, params, hist)
	var total float64
	for _, c := range s.ChargeIntervals {
		total += c.EnergyKWh
	}
	if total > params.HeadroomKWh()+0.01 {
		t.Fatalf("assigned %v kWh beyond headroom %v", total, params.HeadroomKWh())
	}
}

func TestHeuristic_DropsPartiallyMetDemand(t *testing.T) {
	// One cheap slot (max 2.5 kWh) cannot cover 4 kWh of demand, and the
	// battery is empty: the expensive slot must be dropped entirely.
	series := buildSeries(0.10, 0.60)
	hist := stubHistory{0: idle, 1: demandW(4)}
	s := schedule(t, series, defaultParams(), hist)

	if len(s.DischargeIntervals) != 0 {
		t.Fatalf("partially met demand must not be selected: %+v", s.DischargeIntervals)
	}
	if len(s.ChargeIntervals) != 0 {
		t.Fatalf("no charging without a funded discharge: %+v", s.ChargeIntervals)
	}
}

func TestHeuristic_UsesExistingEnergyAboveReserve(t *testing.T) {
	series := buildSeries(0.20, 0.60)
	hist := stubHistory{0: idle, 1: demandW(1)}
	params := defaultParams()
	params.CurrentSoC = 0.5 // 5 kWh stored
	params.MinEnergyKWh = 1 // 4 kWh usable
	params.BatteryCostPerKWh = 0.20

	s := schedule(t, series, params, hist)
	if len(s.DischargeIntervals) != 1 {
		t.Fatalf("expected discharge from existing energy, got %+v", s.DischargeIntervals)
	}
	if len(s.ChargeIntervals) != 0 {
		t.Fatalf("existing energy suffices, no charging expected: %+v", s.ChargeIntervals)
	}
}

func TestHeuristic_ExistingEnergyGatedByCostBasis(t *testing.T) {
	series := buildSeries(0.20, 0.60)
	hist := stubHistory{0: idle, 1: demandW(1)}
	params := defaultParams()
	params.CurrentSoC = 0.5
	// Basis so high that 0.60 < 0.55/0.9 + 0.05: existing energy stays put,
	// and charging at 0.20 still pays, so demand is met from new charge.
	params.BatteryCostPerKWh = 0.55

	s := schedule(t, series, params, hist)
	if len(s.DischargeIntervals) != 1 {
		t.Fatalf("expected discharge funded by new charging, got %+v", s.DischargeIntervals)
	}
	if len(s.ChargeIntervals) == 0 {
		t.Fatalf("expected charging since stored energy is uneconomical")
	}
}

func TestHeuristic_SolarSurplusPreferred(t *testing.T) {
	// Surplus charges at the feed-in tariff (0.08), cheaper than any grid slot.
	series := buildSeries(0.15, 0.18, 0.55)
	hist := stubHistory{0: surplusW(2), 1: idle, 2: demandW(1.5)}
	s := schedule(t, series, defaultParams(), hist)

	if len(s.ChargeIntervals) == 0 {
		t.Fatalf("expected charge slots")
	}
	first := s.ChargeIntervals[0]
	if !first.SolarSourced {
		t.Fatalf("cheapest source should be solar surplus: %+v", first)
	}
	if math.Abs(first.EnergyKWh-1.5) > 0.01 {
		t.Fatalf("expected 1.5 kWh from surplus, got %v", first.EnergyKWh)
	}
}

func TestHeuristic_ThresholdMonotonic(t *testing.T) {
	series := buildSeries(0.10, 0.20, 0.30, 0.40, 0.50, 0.60, 0.70, 0.80)
	hist := stubHistory{}
	for i := range series {
		hist[i] = demandW(0.5)
	}
	fc := forecast.New(series, hist)
	h := NewHeuristic(Config{FeedInTariff: 0.08, ExpensiveQuantile: 0.7})

	prev := -1
	for _, factor := range []float64{1.0, 1.2, 1.5, 2.0, 3.0} {
		params := defaultParams()
		params.ExpensivePriceFactor = factor
		needs, _ := h.findNeeds(series, fc, h.expensiveThreshold(series, params))
		if prev >= 0 && len(needs) > prev {
			t.Fatalf("raising factor to %v increased expensive count %d -> %d", factor, prev, len(needs))
		}
		prev = len(needs)
	}
}

func TestHeuristic_NoFutureToPastCharging(t *testing.T) {
	// The only cheap slot sits after the expensive one.
	series := buildSeries(0.60, 0.10)
	hist := stubHistory{0: demandW(1), 1: idle}
	s := schedule(t, series, defaultParams(), hist)
	if len(s.ChargeIntervals) != 0 || len(s.DischargeIntervals) != 0 {
		t.Fatalf("cannot charge after the discharge slot: %+v", s)
	}
}
