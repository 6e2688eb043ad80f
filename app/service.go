// Package app wires the scheduling engine to its adapters and runs the
// tick loop.
package app

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/homebatt/homebatt/api/status"
	"github.com/homebatt/homebatt/config"
	"github.com/homebatt/homebatt/core/battery"
	"github.com/homebatt/homebatt/core/costbasis"
	"github.com/homebatt/homebatt/core/forecast"
	"github.com/homebatt/homebatt/core/history"
	coremetrics "github.com/homebatt/homebatt/core/metrics"
	"github.com/homebatt/homebatt/core/model"
	"github.com/homebatt/homebatt/core/scheduler"
	"github.com/homebatt/homebatt/infra/logger"
	"github.com/homebatt/homebatt/infra/metrics"
	"github.com/homebatt/homebatt/infra/mqtt"
	"github.com/homebatt/homebatt/infra/prices"
	"github.com/homebatt/homebatt/infra/solver"
	"github.com/homebatt/homebatt/internal/eventbus"
)

// Service orchestrates price refresh, forecasting, scheduling, ledger
// upkeep, and battery commands.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	planner   *scheduler.Planner
	history   *history.MemoryStore
	ledger    *costbasis.Ledger
	prices    *prices.Store
	commander battery.Commander
	bridge    *mqtt.Bridge
	sink      coremetrics.MetricsSink
	promSrv   *http.Server
	apiSrv    *http.Server

	// StrategyBus, ModeBus, and PriceBus publish scheduling outcomes to
	// in-process observers.
	StrategyBus *eventbus.Bus[eventbus.StrategyComputed]
	ModeBus     *eventbus.Bus[eventbus.ModeChanged]
	PriceBus    *eventbus.Bus[eventbus.PricesRefreshed]

	mu        sync.RWMutex
	state     model.BatteryState
	haveState bool
	strategy  *model.Strategy
	lastMode  model.BatteryMode

	ticking atomic.Bool
	tick    time.Duration
}

// New creates a fully wired Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	sink, promSrv, err := metrics.NewSink(cfg.Metrics, logger.New("metrics"))
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	svc := NewWithComponents(cfg, nil, prices.NewClient(cfg.Prices), sink)
	svc.promSrv = promSrv

	bridge, err := mqtt.NewBridge(cfg.MQTT, svc.OnTelemetry)
	if err != nil {
		return nil, fmt.Errorf("mqtt bridge: %w", err)
	}
	svc.bridge = bridge
	svc.commander = bridge
	return svc, nil
}

// NewWithComponents wires a Service from pre-built adapters. commander
// may be nil, which disables mode commands; sink may be nil for no
// observability.
func NewWithComponents(cfg *config.Config, commander battery.Commander, fetcher prices.Fetcher, sink coremetrics.MetricsSink) *Service {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	tick := cfg.API.TickInterval
	if tick <= 0 {
		tick = model.IntervalDuration
	}
	svc := &Service{
		cfg:         cfg,
		log:         logger.New("service"),
		planner:     scheduler.NewPlanner(solver.NewSimplex(), cfg.Scheduler),
		history:     history.NewMemoryStore(cfg.History.WindowDays),
		ledger:      costbasis.NewLedger(0),
		prices:      prices.NewStore(fetcher),
		commander:   commander,
		sink:        sink,
		StrategyBus: eventbus.New[eventbus.StrategyComputed](),
		ModeBus:     eventbus.New[eventbus.ModeChanged](),
		PriceBus:    eventbus.New[eventbus.PricesRefreshed](),
		tick:        tick,
	}
	if cfg.API.Enabled {
		svc.apiSrv = status.NewServer(cfg.API.Addr, svc)
	}
	return svc
}

// OnTelemetry ingests a battery snapshot: it feeds the consumption
// history and keeps the cost-basis ledger in step with measured flows.
func (s *Service) OnTelemetry(state model.BatteryState) {
	s.mu.Lock()
	prev, had := s.state, s.haveState
	s.state = state
	s.haveState = true
	s.mu.Unlock()

	s.history.Append(model.SlotOfDay(state.Time), history.Sample{
		GridW:    state.GridW,
		SolarW:   state.SolarW,
		BatteryW: state.BatteryW,
		Time:     state.Time,
	})

	if had {
		s.accountFlows(prev, state)
	}

	capacity := s.cfg.Battery.CapacityKWh
	if state.SoC()*capacity < costbasis.EmptyEpsilon && s.ledger.Len() > 0 {
		s.log.Infof("battery empty, resetting cost basis ledger")
		s.ledger.Clear()
	}
}

// accountFlows books the energy moved between two snapshots. The meter
// gate skips noise below the ledger pool epsilon.
func (s *Service) accountFlows(prev, cur model.BatteryState) {
	dt := cur.Time.Sub(prev.Time)
	if dt <= 0 || dt > time.Hour {
		return
	}
	moved := prev.BatteryW / 1000 * dt.Hours()
	if math.Abs(moved) < costbasis.PoolEpsilon {
		return
	}

	price := s.spotPrice(cur.Time)
	if moved > 0 {
		solarW := math.Min(math.Max(prev.SolarW, 0), prev.BatteryW)
		solarKWh := solarW / 1000 * dt.Hours()
		gridKWh := moved - solarKWh
		s.ledger.RecordCharge(solarKWh, gridKWh, price, cur.SoC(), cur.Time)
	} else {
		s.ledger.RecordDischarge(-moved, price, cur.SoC(), cur.Time)
	}
}

// spotPrice returns the price of the slot containing t, falling back to
// the flat estimate when the horizon is empty.
func (s *Service) spotPrice(t time.Time) float64 {
	series := s.prices.Current(t)
	if len(series) > 0 && series[0].Contains(t) {
		return series[0].Total
	}
	return costbasis.FallbackPrice
}

// Tick runs one scheduling pass. Overlapping ticks are skipped.
func (s *Service) Tick(ctx context.Context, now time.Time) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Warnf("previous tick still running, skipping")
		return
	}
	defer s.ticking.Store(false)

	s.refreshPrices(ctx, now)
	series := s.prices.Current(now)
	if len(series) == 0 {
		s.log.Warnf("no price horizon, keeping previous strategy")
		return
	}

	s.mu.RLock()
	state := s.state
	prevStrategy := s.strategy
	s.mu.RUnlock()

	params := s.cfg.Battery.Params()
	params.CurrentSoC = state.SoC()
	if summary := s.currentCostBasis(params, prevStrategy, series); summary != nil {
		params.BatteryCostPerKWh = summary.AvgPrice
		if rec, ok := s.sink.(coremetrics.CostBasisRecorder); ok {
			if err := rec.RecordCostBasis(toCostBasisEvent(summary, now)); err != nil {
				s.log.Errorf("cost basis metrics: %v", err)
			}
		}
	}

	fc := forecast.New(series, s.history)
	strategy := s.planner.Schedule(series, params, fc)

	s.mu.Lock()
	s.strategy = strategy
	s.mu.Unlock()

	s.StrategyBus.Publish(eventbus.StrategyComputed{Strategy: strategy, Time: now})
	if err := s.sink.RecordStrategy(toStrategyEvent(strategy, s.cfg.Scheduler.LPFirst, now)); err != nil {
		s.log.Errorf("strategy metrics: %v", err)
	}
	s.log.Debugw("strategy computed", map[string]any{
		"source":          string(strategy.Source),
		"charge_slots":    len(strategy.ChargeIntervals),
		"discharge_slots": len(strategy.DischargeIntervals),
		"savings":         strategy.Economics.Savings,
	})

	s.applyMode(strategy, now)
}

func (s *Service) applyMode(strategy *model.Strategy, now time.Time) {
	mode := strategy.ModeAt(now)
	s.mu.Lock()
	prev := s.lastMode
	s.lastMode = mode
	s.mu.Unlock()
	if mode == prev {
		return
	}

	s.ModeBus.Publish(eventbus.ModeChanged{Previous: prev, Current: mode, Time: now})
	energy := plannedEnergyAt(strategy, now)
	if rec, ok := s.sink.(coremetrics.ModeCommandRecorder); ok {
		if err := rec.RecordModeCommand(coremetrics.ModeCommandEvent{Mode: mode, EnergyKWh: energy, Time: now}); err != nil {
			s.log.Errorf("mode metrics: %v", err)
		}
	}
	if s.commander == nil {
		return
	}
	id, err := s.commander.SetMode(mode, energy)
	if err != nil {
		s.log.Errorf("mode command failed: %v", err)
		return
	}
	if ok, err := s.commander.WaitForAck(id, 10*time.Second); err != nil || !ok {
		s.log.Warnf("mode command %s not acknowledged: %v", id, err)
	}
}

// currentCostBasis blends the tracked ledger with the estimate for
// untracked energy.
func (s *Service) currentCostBasis(params model.BatteryParams, prev *model.Strategy, series []model.PriceInterval) *costbasis.Summary {
	tracked := s.ledger.CostBasis()
	var planned []model.PlannedInterval
	if prev != nil {
		planned = prev.ChargeIntervals
	}
	unknown := costbasis.UnknownEnergyPrice(planned, series)
	return costbasis.Estimate(params.CurrentEnergyKWh(), tracked, unknown)
}

// refreshPrices drops elapsed slots and refetches when the horizon is
// stale or exhausted. A failed refresh keeps the previous horizon.
func (s *Service) refreshPrices(ctx context.Context, now time.Time) {
	s.prices.Prune(now)
	stale := time.Since(s.prices.LastUpdated()) >= s.cfg.Prices.RefreshInterval
	if !stale && len(s.prices.Current(now)) > 0 {
		return
	}
	if err := s.prices.Refresh(ctx); err != nil {
		s.log.Errorf("price refresh failed: %v", err)
		return
	}
	series := s.prices.Current(now)
	ev := eventbus.PricesRefreshed{Intervals: len(series), Time: now}
	if len(series) > 0 {
		last := series[len(series)-1]
		ev.Horizon = last.StartsAt.Add(model.IntervalDuration)
	}
	s.PriceBus.Publish(ev)
}

// Run starts the HTTP endpoints and the tick loop, blocking until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.apiSrv != nil {
		go func() {
			s.log.Infof("status API listening on %s", s.apiSrv.Addr)
			if err := s.apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Errorf("status API stopped: %v", err)
			}
		}()
	}

	s.Tick(ctx, time.Now())
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			go s.Tick(ctx, now)
		}
	}
}

// Close releases the adapters held by the service.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.apiSrv != nil {
		_ = s.apiSrv.Shutdown(ctx)
	}
	if s.promSrv != nil {
		_ = s.promSrv.Shutdown(ctx)
	}
	if s.bridge != nil {
		s.bridge.Disconnect()
	}
	s.StrategyBus.Close()
	s.ModeBus.Close()
	s.PriceBus.Close()
	return nil
}

// CurrentStrategy implements status.Provider.
func (s *Service) CurrentStrategy() *model.Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategy
}

// CostBasis implements status.Provider.
func (s *Service) CostBasis() *costbasis.Summary {
	s.mu.RLock()
	state := s.state
	prev := s.strategy
	s.mu.RUnlock()
	params := s.cfg.Battery.Params()
	params.CurrentSoC = state.SoC()
	return s.currentCostBasis(params, prev, s.prices.Current(time.Now()))
}

// BatteryState implements status.Provider.
func (s *Service) BatteryState() model.BatteryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// PriceHorizon implements status.Provider.
func (s *Service) PriceHorizon() []model.PriceInterval {
	return s.prices.Current(time.Now())
}

// Ledger exposes the cost-basis ledger for the plan command and tests.
func (s *Service) Ledger() *costbasis.Ledger { return s.ledger }

func plannedEnergyAt(strategy *model.Strategy, now time.Time) float64 {
	for _, iv := range strategy.DischargeIntervals {
		if iv.Contains(now) {
			return iv.EnergyKWh
		}
	}
	for _, iv := range strategy.ChargeIntervals {
		if iv.Contains(now) {
			return iv.EnergyKWh
		}
	}
	return 0
}

func toStrategyEvent(st *model.Strategy, lpFirst bool, now time.Time) coremetrics.StrategyEvent {
	return coremetrics.StrategyEvent{
		Source:           st.Source,
		ChargeSlots:      len(st.ChargeIntervals),
		DischargeSlots:   len(st.DischargeIntervals),
		PlannedChargeKWh: st.NeededKWh,
		ForecastedDemand: st.ForecastedDemandKWh,
		BaselineCost:     st.Economics.BaselineCost,
		OptimizedCost:    st.Economics.OptimizedCost,
		Savings:          st.Economics.Savings,
		LPFallback:       lpFirst && st.Source == model.SourceHeuristic,
		Time:             now,
	}
}

func toCostBasisEvent(sum *costbasis.Summary, now time.Time) coremetrics.CostBasisEvent {
	return coremetrics.CostBasisEvent{
		AvgPrice:     sum.AvgPrice,
		TotalKWh:     sum.TotalKWh,
		SolarPercent: sum.SolarPercent,
		GridPercent:  sum.GridPercent,
		TotalCost:    sum.TotalCost,
		IsEstimated:  sum.IsEstimated,
		Time:         now,
	}
}
