package scheduler

import "fmt"

// Config defines planning parameters loaded from configuration.
type Config struct {
	// FeedInTariff is the fixed export credit in currency/kWh. It prices
	// solar surplus both as a charging source and in the baseline.
	FeedInTariff float64 `json:"feed_in_tariff" yaml:"feed_in_tariff"`
	// LPFirst tries the linear program before the heuristic.
	LPFirst bool `json:"lp_first" yaml:"lp_first"`
	// MaxHorizonSlots bounds the LP problem size. Slots beyond the bound
	// are planned by the heuristic only.
	MaxHorizonSlots int `json:"max_horizon_slots" yaml:"max_horizon_slots"`
	// ExpensiveQuantile is the order statistic backing the dynamic
	// expensive-price threshold.
	ExpensiveQuantile float64 `json:"expensive_quantile" yaml:"expensive_quantile"`
}

// SetDefaults fills unset fields with working values.
func (c *Config) SetDefaults() {
	if c.MaxHorizonSlots == 0 {
		c.MaxHorizonSlots = 96
	}
	if c.ExpensiveQuantile == 0 {
		c.ExpensiveQuantile = 0.7
	}
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	if c.FeedInTariff < 0 {
		return fmt.Errorf("feed_in_tariff must not be negative, got %v", c.FeedInTariff)
	}
	if c.MaxHorizonSlots < 0 {
		return fmt.Errorf("max_horizon_slots must not be negative, got %d", c.MaxHorizonSlots)
	}
	if c.ExpensiveQuantile < 0 || c.ExpensiveQuantile > 1 {
		return fmt.Errorf("expensive_quantile outside [0,1]: %v", c.ExpensiveQuantile)
	}
	return nil
}
