package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/homebatt/homebatt/core/metrics"
	"github.com/homebatt/homebatt/infra/logger"
)

// InfluxSink writes scheduling events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordStrategy writes the outcome of one scheduling tick.
func (s *InfluxSink) RecordStrategy(ev coremetrics.StrategyEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("strategy_computed").
		AddTag("source", string(ev.Source)).
		AddTag("lp_fallback", strconv.FormatBool(ev.LPFallback)).
		AddTag("component", "planner").
		AddField("charge_slots", ev.ChargeSlots).
		AddField("discharge_slots", ev.DischargeSlots).
		AddField("planned_charge_kwh", round3(ev.PlannedChargeKWh)).
		AddField("forecasted_demand_kwh", round3(ev.ForecastedDemand)).
		AddField("baseline_cost", round3(ev.BaselineCost)).
		AddField("optimized_cost", round3(ev.OptimizedCost)).
		AddField("savings", round3(ev.Savings)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCostBasis writes the stored-energy composition.
func (s *InfluxSink) RecordCostBasis(ev coremetrics.CostBasisEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_cost_basis").
		AddTag("estimated", strconv.FormatBool(ev.IsEstimated)).
		AddTag("component", "ledger").
		AddField("avg_price", round3(ev.AvgPrice)).
		AddField("total_kwh", round3(ev.TotalKWh)).
		AddField("solar_percent", round3(ev.SolarPercent)).
		AddField("total_cost", round3(ev.TotalCost)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordModeCommand writes a mode transition sent to the battery.
func (s *InfluxSink) RecordModeCommand(ev coremetrics.ModeCommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_mode_command").
		AddTag("mode", ev.Mode.String()).
		AddTag("component", "bridge").
		AddField("energy_kwh", round3(ev.EnergyKWh)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
