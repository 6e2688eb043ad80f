package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/homebatt/homebatt/core/metrics"
	"github.com/homebatt/homebatt/core/model"
	"github.com/homebatt/homebatt/core/scheduler"
	"github.com/homebatt/homebatt/infra/mqtt"
	"github.com/homebatt/homebatt/infra/prices"
)

// Config is the root configuration of the service.
type Config struct {
	Battery   BatteryConfig    `json:"battery"`
	Scheduler scheduler.Config `json:"scheduler"`
	History   HistoryConfig    `json:"history"`
	MQTT      mqtt.Config      `json:"mqtt"`
	Prices    prices.Config    `json:"prices"`
	Metrics   metrics.Config   `json:"metrics"`
	API       APIConfig        `json:"api"`
}

// BatteryConfig holds the static battery settings. Live state arrives
// over telemetry.
type BatteryConfig struct {
	CapacityKWh          float64 `json:"capacity_kwh"`
	TargetSoC            float64 `json:"target_soc"`
	ChargePowerKW        float64 `json:"charge_power_kw"`
	EfficiencyLoss       float64 `json:"efficiency_loss"`
	ExpensivePriceFactor float64 `json:"expensive_price_factor"`
	MinProfitPerKWh      float64 `json:"min_profit_per_kwh"`
	MinEnergyKWh         float64 `json:"min_energy_kwh"`
}

// SetDefaults fills unset fields with working values.
func (c *BatteryConfig) SetDefaults() {
	if c.TargetSoC == 0 {
		c.TargetSoC = 0.9
	}
	if c.ExpensivePriceFactor == 0 {
		c.ExpensivePriceFactor = 1.3
	}
}

// Params builds the static part of the planning parameters. CurrentSoC
// and BatteryCostPerKWh are filled per tick from telemetry and the ledger.
func (c BatteryConfig) Params() model.BatteryParams {
	return model.BatteryParams{
		CapacityKWh:          c.CapacityKWh,
		TargetSoC:            c.TargetSoC,
		ChargePowerKW:        c.ChargePowerKW,
		EfficiencyLoss:       c.EfficiencyLoss,
		ExpensivePriceFactor: c.ExpensivePriceFactor,
		MinProfitPerKWh:      c.MinProfitPerKWh,
		MinEnergyKWh:         c.MinEnergyKWh,
	}
}

// Validate rejects battery settings neither scheduler can plan with.
func (c BatteryConfig) Validate() error {
	p := c.Params()
	p.CurrentSoC = p.TargetSoC // live field, not validated here
	return p.Validate()
}

// HistoryConfig defines the rolling consumption history window.
type HistoryConfig struct {
	WindowDays int `json:"window_days"`
}

// SetDefaults fills unset fields.
func (c *HistoryConfig) SetDefaults() {
	if c.WindowDays <= 0 {
		c.WindowDays = 7
	}
}

// APIConfig defines the status HTTP endpoint.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	// TickInterval overrides the scheduling cadence, mostly for tests.
	TickInterval time.Duration `json:"tick_interval"`
}

// SetDefaults fills unset fields.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Load reads the configuration file, applies HB_ environment overrides,
// fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("HB_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "hb_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Battery.SetDefaults()
	cfg.Scheduler.SetDefaults()
	cfg.History.SetDefaults()
	cfg.Prices.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Battery.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Prices.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
