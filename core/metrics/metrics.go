// Package metrics defines the observability ports of the scheduling
// engine. Sinks receive strategy, cost-basis, and mode-command events;
// optional capabilities are modeled as extension interfaces.
package metrics

import (
	"time"

	"github.com/homebatt/homebatt/core/model"
)

// StrategyEvent summarizes one scheduling tick.
type StrategyEvent struct {
	Source           model.StrategySource
	ChargeSlots      int
	DischargeSlots   int
	PlannedChargeKWh float64
	ForecastedDemand float64
	BaselineCost     float64
	OptimizedCost    float64
	Savings          float64
	LPFallback       bool // the LP was tried and the heuristic answered
	Time             time.Time
}

// CostBasisEvent is a snapshot of the stored-energy cost composition.
type CostBasisEvent struct {
	AvgPrice     float64
	TotalKWh     float64
	SolarPercent float64
	GridPercent  float64
	TotalCost    float64
	IsEstimated  bool
	Time         time.Time
}

// ModeCommandEvent records a battery mode decision being issued.
type ModeCommandEvent struct {
	Mode      model.BatteryMode
	EnergyKWh float64
	Time      time.Time
}

// MetricsSink records strategy events for observability purposes.
type MetricsSink interface {
	RecordStrategy(ev StrategyEvent) error
}

// CostBasisRecorder records cost-basis snapshots.
type CostBasisRecorder interface {
	RecordCostBasis(ev CostBasisEvent) error
}

// ModeCommandRecorder records issued mode commands.
type ModeCommandRecorder interface {
	RecordModeCommand(ev ModeCommandEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordStrategy(StrategyEvent) error       { return nil }
func (NopSink) RecordCostBasis(CostBasisEvent) error     { return nil }
func (NopSink) RecordModeCommand(ModeCommandEvent) error { return nil }

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    int    `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
