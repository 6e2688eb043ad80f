package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebatt/homebatt/config"
	"github.com/homebatt/homebatt/core/model"
	"github.com/homebatt/homebatt/infra/mqtt"
)

type stubFetcher struct {
	series []model.PriceInterval
	calls  int
}

func (f *stubFetcher) Fetch(context.Context) ([]model.PriceInterval, error) {
	f.calls++
	return f.series, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Battery: config.BatteryConfig{
			CapacityKWh:          10,
			TargetSoC:            0.9,
			ChargePowerKW:        10,
			ExpensivePriceFactor: 1.3,
			MinProfitPerKWh:      0.05,
		},
	}
	cfg.Scheduler.SetDefaults()
	cfg.History.SetDefaults()
	cfg.Prices.SetDefaults()
	cfg.API.SetDefaults()
	return cfg
}

func cheapExpensiveSeries(base time.Time) []model.PriceInterval {
	return []model.PriceInterval{
		{StartsAt: base, Total: 0.10, Index: 0, IntervalOfDay: model.SlotOfDay(base)},
		{StartsAt: base.Add(model.IntervalDuration), Total: 0.50, Index: 1, IntervalOfDay: model.SlotOfDay(base.Add(model.IntervalDuration))},
	}
}

func TestServiceTickSchedulesAndCommands(t *testing.T) {
	base := time.Now().Truncate(model.IntervalDuration)
	fetcher := &stubFetcher{series: cheapExpensiveSeries(base)}
	commander := mqtt.NewMockCommander()
	svc := NewWithComponents(testConfig(), commander, fetcher, nil)

	svc.OnTelemetry(model.BatteryState{SoCPercent: 0, Time: base})
	events := svc.StrategyBus.Subscribe()

	now := base.Add(time.Minute)
	svc.Tick(context.Background(), now)

	strategy := svc.CurrentStrategy()
	require.NotNil(t, strategy)
	require.NotEmpty(t, strategy.ChargeIntervals, "cheap slot before expensive demand should be planned")
	assert.Equal(t, model.ModeCharge, strategy.ModeAt(now))

	select {
	case ev := <-events:
		assert.Equal(t, strategy, ev.Strategy)
	default:
		t.Fatal("expected a strategy event")
	}

	last := commander.Last()
	require.NotNil(t, last, "mode change must be commanded")
	assert.Equal(t, model.ModeCharge, last.Mode)
	assert.InDelta(t, strategy.ChargeIntervals[0].EnergyKWh, last.EnergyKWh, 1e-9)
	assert.Equal(t, 1, fetcher.calls)
}

func TestServiceRefreshPublishesPriceEvent(t *testing.T) {
	base := time.Now().Truncate(model.IntervalDuration)
	series := cheapExpensiveSeries(base)
	fetcher := &stubFetcher{series: series}
	svc := NewWithComponents(testConfig(), nil, fetcher, nil)

	events := svc.PriceBus.Subscribe()
	now := base.Add(time.Minute)
	svc.Tick(context.Background(), now)

	select {
	case ev := <-events:
		assert.Equal(t, len(series), ev.Intervals)
		assert.Equal(t, series[1].StartsAt.Add(model.IntervalDuration), ev.Horizon)
	default:
		t.Fatal("expected a price refresh event")
	}
}

func TestServiceTickWithoutPricesKeepsStrategy(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := NewWithComponents(testConfig(), nil, fetcher, nil)

	svc.Tick(context.Background(), time.Now())
	assert.Nil(t, svc.CurrentStrategy())
}

func TestServiceModeCommandOnlyOnChange(t *testing.T) {
	base := time.Now().Truncate(model.IntervalDuration)
	fetcher := &stubFetcher{series: cheapExpensiveSeries(base)}
	commander := mqtt.NewMockCommander()
	svc := NewWithComponents(testConfig(), commander, fetcher, nil)
	svc.OnTelemetry(model.BatteryState{SoCPercent: 0, Time: base})

	now := base.Add(time.Minute)
	svc.Tick(context.Background(), now)
	svc.Tick(context.Background(), now.Add(time.Minute))
	assert.Len(t, commander.Commands, 1, "unchanged mode is not re-commanded")
}

func TestServiceTelemetryBooksCharge(t *testing.T) {
	base := time.Now().Truncate(model.IntervalDuration)
	svc := NewWithComponents(testConfig(), nil, &stubFetcher{}, nil)

	svc.OnTelemetry(model.BatteryState{SoCPercent: 20, BatteryW: 2000, Time: base})
	svc.OnTelemetry(model.BatteryState{SoCPercent: 25, BatteryW: 0, Time: base.Add(15 * time.Minute)})

	sum := svc.Ledger().CostBasis()
	require.NotNil(t, sum, "charging between snapshots must be booked")
	assert.InDelta(t, 0.5, sum.TotalKWh, 1e-9)
	assert.InDelta(t, 0.30, sum.AvgPrice, 1e-9, "no horizon, flat fallback price applies")
}

func TestServiceTelemetrySolarChargeAttribution(t *testing.T) {
	base := time.Now().Truncate(model.IntervalDuration)
	svc := NewWithComponents(testConfig(), nil, &stubFetcher{}, nil)

	svc.OnTelemetry(model.BatteryState{SoCPercent: 20, BatteryW: 2000, SolarW: 3000, Time: base})
	svc.OnTelemetry(model.BatteryState{SoCPercent: 25, Time: base.Add(15 * time.Minute)})

	sum := svc.Ledger().CostBasis()
	require.NotNil(t, sum)
	assert.InDelta(t, 100, sum.SolarPercent, 1e-9, "charge covered by solar output")
}

func TestServiceClearsLedgerWhenEmpty(t *testing.T) {
	base := time.Now().Truncate(model.IntervalDuration)
	svc := NewWithComponents(testConfig(), nil, &stubFetcher{}, nil)

	svc.OnTelemetry(model.BatteryState{SoCPercent: 20, BatteryW: 2000, Time: base})
	svc.OnTelemetry(model.BatteryState{SoCPercent: 25, Time: base.Add(15 * time.Minute)})
	require.Positive(t, svc.Ledger().Len())

	svc.OnTelemetry(model.BatteryState{SoCPercent: 0, Time: base.Add(30 * time.Minute)})
	assert.Zero(t, svc.Ledger().Len(), "ledger resets at empty battery")
}
