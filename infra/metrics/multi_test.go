package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/homebatt/homebatt/core/metrics"
	"github.com/homebatt/homebatt/core/model"
)

type recordingSink struct {
	strategies []coremetrics.StrategyEvent
	bases      []coremetrics.CostBasisEvent
	modes      []coremetrics.ModeCommandEvent
	err        error
}

func (r *recordingSink) RecordStrategy(ev coremetrics.StrategyEvent) error {
	r.strategies = append(r.strategies, ev)
	return r.err
}

func (r *recordingSink) RecordCostBasis(ev coremetrics.CostBasisEvent) error {
	r.bases = append(r.bases, ev)
	return r.err
}

func (r *recordingSink) RecordModeCommand(ev coremetrics.ModeCommandEvent) error {
	r.modes = append(r.modes, ev)
	return r.err
}

// strategyOnly implements just the base sink interface.
type strategyOnly struct {
	strategies []coremetrics.StrategyEvent
}

func (s *strategyOnly) RecordStrategy(ev coremetrics.StrategyEvent) error {
	s.strategies = append(s.strategies, ev)
	return nil
}

func TestMultiSink_FanOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := NewMultiSink(a, b)

	ev := coremetrics.StrategyEvent{Source: model.SourceLP, Savings: 1.25, Time: time.Now()}
	require.NoError(t, m.RecordStrategy(ev))
	assert.Len(t, a.strategies, 1)
	assert.Len(t, b.strategies, 1)
	assert.Equal(t, model.SourceLP, a.strategies[0].Source)
}

func TestMultiSink_SkipsMissingCapabilities(t *testing.T) {
	full := &recordingSink{}
	base := &strategyOnly{}
	m := NewMultiSink(full, base)

	require.NoError(t, m.RecordCostBasis(coremetrics.CostBasisEvent{AvgPrice: 0.21}))
	require.NoError(t, m.RecordModeCommand(coremetrics.ModeCommandEvent{Mode: model.ModeCharge}))
	assert.Len(t, full.bases, 1)
	assert.Len(t, full.modes, 1)
	assert.Empty(t, base.strategies)
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	bad := &recordingSink{err: errors.New("sink down")}
	good := &recordingSink{}
	m := NewMultiSink(bad, good)

	err := m.RecordStrategy(coremetrics.StrategyEvent{})
	require.Error(t, err)
	assert.Len(t, good.strategies, 1, "healthy sink still receives the event")
}

func TestPromSink_RecordStrategy(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordStrategy(coremetrics.StrategyEvent{
		Source:           model.SourceHeuristic,
		ChargeSlots:      3,
		DischargeSlots:   2,
		PlannedChargeKWh: 4.5,
		BaselineCost:     2.0,
		OptimizedCost:    1.4,
		Savings:          0.6,
		LPFallback:       true,
		Time:             time.Now(),
	}))
	require.NoError(t, sink.RecordCostBasis(coremetrics.CostBasisEvent{
		AvgPrice: 0.18, TotalKWh: 6.2, SolarPercent: 40,
	}))
	require.NoError(t, sink.RecordModeCommand(coremetrics.ModeCommandEvent{Mode: model.ModeDischarge}))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["scheduler_runs_total"])
	assert.True(t, names["strategy_savings"])
	assert.True(t, names["battery_cost_basis"])
	assert.True(t, names["battery_mode"])
}

func TestPromSink_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	require.NoError(t, err)
	_, err = NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	assert.NoError(t, err, "second registration reuses existing collectors")
}
