package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/homebatt/homebatt/core/metrics"
)

// PromSink exposes scheduling results as Prometheus metrics.
type PromSink struct {
	runs          *prometheus.CounterVec
	savings       prometheus.Gauge
	baseline      prometheus.Gauge
	optimized     prometheus.Gauge
	plannedCharge prometheus.Gauge
	demand        prometheus.Gauge
	costBasis     prometheus.Gauge
	storedKWh     prometheus.Gauge
	solarPercent  prometheus.Gauge
	mode          *prometheus.GaugeVec
}

// NewPromSink registers scheduling metrics on the default Prometheus
// registerer. The HTTP server is started separately via StartPromServer.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Scheduling ticks by strategy source",
		}, []string{"source", "lp_fallback"}),
		savings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strategy_savings",
			Help: "Projected savings of the current strategy in currency",
		}),
		baseline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strategy_baseline_cost",
			Help: "Cost of the horizon without battery intervention",
		}),
		optimized: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strategy_optimized_cost",
			Help: "Cost of the horizon under the planned strategy",
		}),
		plannedCharge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strategy_planned_charge_kwh",
			Help: "Energy planned to be charged over the horizon",
		}),
		demand: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strategy_forecasted_demand_kwh",
			Help: "Forecasted import demand of selected discharge slots",
		}),
		costBasis: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_cost_basis",
			Help: "Blended purchase price of stored energy in currency/kWh",
		}),
		storedKWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_tracked_kwh",
			Help: "Stored energy accounted for by the cost-basis ledger",
		}),
		solarPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_solar_percent",
			Help: "Share of stored energy attributed to solar",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_mode",
			Help: "Active battery mode (1 for the current mode, 0 otherwise)",
		}, []string{"mode"}),
	}

	collectors := []prometheus.Collector{
		s.runs, s.savings, s.baseline, s.optimized, s.plannedCharge,
		s.demand, s.costBasis, s.storedKWh, s.solarPercent, s.mode,
	}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	s.runs = collectors[0].(*prometheus.CounterVec)
	s.savings = collectors[1].(prometheus.Gauge)
	s.baseline = collectors[2].(prometheus.Gauge)
	s.optimized = collectors[3].(prometheus.Gauge)
	s.plannedCharge = collectors[4].(prometheus.Gauge)
	s.demand = collectors[5].(prometheus.Gauge)
	s.costBasis = collectors[6].(prometheus.Gauge)
	s.storedKWh = collectors[7].(prometheus.Gauge)
	s.solarPercent = collectors[8].(prometheus.Gauge)
	s.mode = collectors[9].(*prometheus.GaugeVec)
	return s, nil
}

// RecordStrategy publishes the outcome of one scheduling tick.
func (s *PromSink) RecordStrategy(ev coremetrics.StrategyEvent) error {
	fallback := "false"
	if ev.LPFallback {
		fallback = "true"
	}
	s.runs.WithLabelValues(string(ev.Source), fallback).Inc()
	s.savings.Set(ev.Savings)
	s.baseline.Set(ev.BaselineCost)
	s.optimized.Set(ev.OptimizedCost)
	s.plannedCharge.Set(ev.PlannedChargeKWh)
	s.demand.Set(ev.ForecastedDemand)
	return nil
}

// RecordCostBasis publishes the stored-energy composition.
func (s *PromSink) RecordCostBasis(ev coremetrics.CostBasisEvent) error {
	s.costBasis.Set(ev.AvgPrice)
	s.storedKWh.Set(ev.TotalKWh)
	s.solarPercent.Set(ev.SolarPercent)
	return nil
}

// RecordModeCommand flags the active mode.
func (s *PromSink) RecordModeCommand(ev coremetrics.ModeCommandEvent) error {
	for _, m := range []string{"idle", "charge", "discharge"} {
		v := 0.0
		if m == ev.Mode.String() {
			v = 1
		}
		s.mode.WithLabelValues(m).Set(v)
	}
	return nil
}
