package scheduler

import (
	"github.com/homebatt/homebatt/core/forecast"
	"github.com/homebatt/homebatt/core/model"
)

// baselineCost is the cost of running the home with no battery
// intervention: all import demand bought at spot, all solar surplus
// credited at the feed-in tariff.
func baselineCost(series []model.PriceInterval, fc *forecast.Series, feedIn float64) float64 {
	var cost float64
	for pos, iv := range series {
		e := fc.At(pos)
		cost += e.ImportDemandKWh*iv.Total - e.SolarSurplusKWh*feedIn
	}
	return cost
}

// economics derives the reported figures from baseline and optimized cost.
// Savings never go negative: a plan that would cost more than doing
// nothing reports zero savings.
func economics(baseline, optimized float64) model.Economics {
	savings := baseline - optimized
	if savings < 0 {
		savings = 0
	}
	return model.Economics{
		BaselineCost:  baseline,
		OptimizedCost: optimized,
		Savings:       savings,
	}
}
