package model

import (
	"fmt"
	"time"
)

// BatteryParams groups the static battery settings and the live state both
// schedulers plan against. SoC values are fractions of capacity.
type BatteryParams struct {
	CapacityKWh          float64 `json:"capacity_kwh"`
	CurrentSoC           float64 `json:"current_soc"`
	TargetSoC            float64 `json:"target_soc"`
	ChargePowerKW        float64 `json:"charge_power_kw"`
	EfficiencyLoss       float64 `json:"efficiency_loss"` // 0..0.5, symmetric
	ExpensivePriceFactor float64 `json:"expensive_price_factor"`
	MinProfitPerKWh      float64 `json:"min_profit_per_kwh"`
	// BatteryCostPerKWh is the blended purchase price of the energy already
	// stored. Zero means unknown: existing energy is then always eligible
	// for discharge.
	BatteryCostPerKWh float64 `json:"battery_cost_per_kwh"`
	MinEnergyKWh      float64 `json:"min_energy_kwh"` // reserve floor
}

// Validate rejects parameter sets neither scheduler can plan with.
func (b BatteryParams) Validate() error {
	if b.CapacityKWh <= 0 {
		return fmt.Errorf("capacity_kwh must be positive, got %v", b.CapacityKWh)
	}
	if b.ChargePowerKW <= 0 {
		return fmt.Errorf("charge_power_kw must be positive, got %v", b.ChargePowerKW)
	}
	if b.CurrentSoC < 0 || b.CurrentSoC > 1 {
		return fmt.Errorf("current_soc outside [0,1]: %v", b.CurrentSoC)
	}
	if b.TargetSoC < 0 || b.TargetSoC > 1 {
		return fmt.Errorf("target_soc outside [0,1]: %v", b.TargetSoC)
	}
	if b.EfficiencyLoss < 0 || b.EfficiencyLoss > 0.5 {
		return fmt.Errorf("efficiency_loss outside [0,0.5]: %v", b.EfficiencyLoss)
	}
	return nil
}

// CurrentEnergyKWh is the energy stored right now.
func (b BatteryParams) CurrentEnergyKWh() float64 {
	return b.CurrentSoC * b.CapacityKWh
}

// TargetEnergyKWh is the planning ceiling for stored energy.
func (b BatteryParams) TargetEnergyKWh() float64 {
	return b.TargetSoC * b.CapacityKWh
}

// HeadroomKWh is how much new energy may still be charged.
func (b BatteryParams) HeadroomKWh() float64 {
	h := (b.TargetSoC - b.CurrentSoC) * b.CapacityKWh
	if h < 0 {
		return 0
	}
	return h
}

// MaxChargePerIntervalKWh is the per-slot charge (and discharge) cap.
func (b BatteryParams) MaxChargePerIntervalKWh() float64 {
	return b.ChargePowerKW * IntervalHours
}

// EtaCharge is the one-way charge efficiency.
func (b BatteryParams) EtaCharge() float64 { return 1 - b.EfficiencyLoss }

// EtaDischarge is the one-way discharge efficiency.
func (b BatteryParams) EtaDischarge() float64 { return 1 - b.EfficiencyLoss }

// BatteryState is a live telemetry snapshot from the battery and meter.
// Sign conventions: grid net power is positive when importing, battery
// power is positive when charging, solar is never negative.
type BatteryState struct {
	SoCPercent float64   `json:"soc_percent"` // 0..100
	GridW      float64   `json:"grid_w"`
	SolarW     float64   `json:"solar_w"`
	BatteryW   float64   `json:"battery_w"`
	Time       time.Time `json:"time"`
}

// SoC returns the state of charge as a fraction.
func (s BatteryState) SoC() float64 { return s.SoCPercent / 100 }
