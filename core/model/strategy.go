package model

import "time"

// BatteryMode is the per-interval command issued to the battery.
type BatteryMode int

const (
	ModeIdle BatteryMode = iota
	ModeCharge
	ModeDischarge
)

// String returns a human-readable representation of the mode.
func (m BatteryMode) String() string {
	switch m {
	case ModeCharge:
		return "charge"
	case ModeDischarge:
		return "discharge"
	default:
		return "idle"
	}
}

// StrategySource identifies which scheduler produced a strategy.
type StrategySource string

const (
	SourceHeuristic StrategySource = "heuristic"
	SourceLP        StrategySource = "lp"
)

// PlannedInterval is a price slot the scheduler selected, annotated with
// the energy planned for it.
type PlannedInterval struct {
	PriceInterval
	// EnergyKWh is the energy to move in this slot: charged into the
	// battery for charge slots, delivered to the house for discharge slots.
	EnergyKWh float64 `json:"energyKWh"`
	// DemandKWh is the forecasted import demand of a discharge slot.
	DemandKWh float64 `json:"demandKWh,omitempty"`
	// SolarSourced marks charge slots fed from forecasted solar surplus
	// rather than grid imports.
	SolarSourced bool `json:"solarSourced,omitempty"`
}

// Economics is the baseline-vs-optimized cost breakdown of a strategy.
type Economics struct {
	BaselineCost  float64 `json:"baselineCost"`
	OptimizedCost float64 `json:"optimizedCost"`
	Savings       float64 `json:"savings"`
}

// Strategy is the scheduling result for the remaining price horizon. It is
// immutable once produced; each tick replaces it wholesale.
type Strategy struct {
	GeneratedAt        time.Time         `json:"generatedAt"`
	Source             StrategySource    `json:"source"`
	ChargeIntervals    []PlannedInterval `json:"chargeIntervals"`
	DischargeIntervals []PlannedInterval `json:"dischargeIntervals"`
	// NeededKWh is the total energy newly planned into charge slots;
	// ForecastedDemandKWh is the import demand of selected discharge slots.
	NeededKWh           float64   `json:"neededKWh"`
	ForecastedDemandKWh float64   `json:"forecastedDemand"`
	Savings             float64   `json:"savings"`
	Economics           Economics `json:"economics"`
}

// ModeAt maps a point in time to the planned battery mode. Discharge wins
// over charge if a slot somehow appears in both lists.
func (s *Strategy) ModeAt(t time.Time) BatteryMode {
	if s == nil {
		return ModeIdle
	}
	for _, iv := range s.DischargeIntervals {
		if iv.Contains(t) {
			return ModeDischarge
		}
	}
	for _, iv := range s.ChargeIntervals {
		if iv.Contains(t) {
			return ModeCharge
		}
	}
	return ModeIdle
}
