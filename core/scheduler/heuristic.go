package scheduler

import (
	"sort"
	"time"

	"github.com/homebatt/homebatt/core/forecast"
	"github.com/homebatt/homebatt/core/model"
	"github.com/homebatt/homebatt/internal/stats"
)

// energyEpsilon absorbs floating-point and sensor noise in planned
// energies. Amounts below it are treated as zero.
const energyEpsilon = 0.01

// Heuristic is the greedy scheduler. It pairs the cheapest charge sources
// with the most expensive discharge needs under a per-pair profitability
// gate. It cannot fail on valid inputs and is the fallback when the LP
// scheduler returns nothing.
type Heuristic struct {
	FeedInTariff      float64
	ExpensiveQuantile float64
}

// NewHeuristic returns a heuristic scheduler for the given config.
func NewHeuristic(cfg Config) Heuristic {
	return Heuristic{FeedInTariff: cfg.FeedInTariff, ExpensiveQuantile: cfg.ExpensiveQuantile}
}

// chargeSource is a candidate slot energy can be bought (or diverted from
// export) in. capKWh is its remaining capacity.
type chargeSource struct {
	pos      int
	price    float64 // effective price: spot for grid, feed-in for solar
	capKWh   float64
	assigned float64
	solar    bool
}

// dischargeNeed is an expensive slot with forecasted import demand.
type dischargeNeed struct {
	pos       int
	demandKWh float64
}

// Schedule plans charge and discharge intervals over the price series.
// The series must contain only current and future slots in chronological
// order; forecasts are addressed by series position.
func (h Heuristic) Schedule(series []model.PriceInterval, params model.BatteryParams, fc *forecast.Series) *model.Strategy {
	strat := &model.Strategy{
		GeneratedAt: time.Now(),
		Source:      model.SourceHeuristic,
	}
	if len(series) == 0 || params.Validate() != nil {
		return strat
	}

	baseline := baselineCost(series, fc, h.FeedInTariff)
	strat.Economics = economics(baseline, baseline)

	threshold := h.expensiveThreshold(series, params)
	needs, lastExpensive := h.findNeeds(series, fc, threshold)
	if len(needs) == 0 {
		return strat
	}
	sources := h.buildSources(series, fc, params, threshold, lastExpensive)

	headroom := params.HeadroomKWh()
	existingKWh := params.CurrentEnergyKWh() - params.MinEnergyKWh
	if existingKWh < 0 {
		existingKWh = 0
	}
	etaD := params.EtaDischarge()

	// Most expensive demand first, so scarce cheap energy goes where it
	// pays the most.
	ordered := make([]dischargeNeed, len(needs))
	copy(ordered, needs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return series[ordered[i].pos].Total > series[ordered[j].pos].Total
	})

	var (
		selected            []dischargeNeed
		avoided, chargeCost float64
		existingCost        float64
	)
	for _, need := range ordered {
		if need.demandKWh < energyEpsilon {
			continue
		}
		price := series[need.pos].Total
		remaining := need.demandKWh

		// Existing stored energy above the reserve floor goes first,
		// gated on profitability against the cost basis when one is
		// configured.
		usedStored := 0.0
		if existingKWh > 0 && h.existingEligible(price, params) {
			needStored := remaining / etaD
			usedStored = needStored
			if usedStored > existingKWh {
				usedStored = existingKWh
			}
			remaining -= usedStored * etaD
		}

		assigns, headroomLeft := h.assignSources(sources, need.pos, price, remaining, headroom, params)
		for _, a := range assigns {
			remaining -= a.kWh
		}
		if remaining > energyEpsilon {
			// Demand cannot be fully met: drop the slot entirely, never
			// partially discharge-and-report.
			continue
		}

		existingKWh -= usedStored
		existingCost += usedStored * params.BatteryCostPerKWh
		avoided += need.demandKWh * price
		headroom = headroomLeft
		for _, a := range assigns {
			a.src.assigned += a.kWh
			chargeCost += a.kWh * a.src.price
		}
		selected = append(selected, need)
	}

	if len(selected) == 0 {
		return strat
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].pos < selected[j].pos })
	for _, need := range selected {
		strat.DischargeIntervals = append(strat.DischargeIntervals, model.PlannedInterval{
			PriceInterval: series[need.pos],
			EnergyKWh:     need.demandKWh,
			DemandKWh:     need.demandKWh,
		})
		strat.ForecastedDemandKWh += need.demandKWh
	}
	for _, src := range sources {
		if src.assigned < energyEpsilon {
			continue
		}
		strat.ChargeIntervals = append(strat.ChargeIntervals, model.PlannedInterval{
			PriceInterval: series[src.pos],
			EnergyKWh:     src.assigned,
			SolarSourced:  src.solar,
		})
		strat.NeededKWh += src.assigned
	}
	sort.Slice(strat.ChargeIntervals, func(i, j int) bool {
		return strat.ChargeIntervals[i].StartsAt.Before(strat.ChargeIntervals[j].StartsAt)
	})

	optimized := baseline - avoided + chargeCost + existingCost
	strat.Economics = economics(baseline, optimized)
	strat.Savings = strat.Economics.Savings
	return strat
}

// expensiveThreshold is the dynamic price bar a slot must clear to be
// worth discharging into: a factor over the series average, floored by a
// high order statistic so a few outliers cannot drag it down.
func (h Heuristic) expensiveThreshold(series []model.PriceInterval, params model.BatteryParams) float64 {
	avg := model.AveragePrice(series)
	prices := make([]float64, len(series))
	for i, iv := range series {
		prices[i] = iv.Total
	}
	sort.Float64s(prices)
	q := h.ExpensiveQuantile
	if q == 0 {
		q = 0.7
	}
	threshold := avg * params.ExpensivePriceFactor
	if p := stats.Percentile(prices, q); p > threshold {
		threshold = p
	}
	return threshold
}

func (h Heuristic) findNeeds(series []model.PriceInterval, fc *forecast.Series, threshold float64) ([]dischargeNeed, int) {
	var needs []dischargeNeed
	last := -1
	for pos, iv := range series {
		if iv.Total > threshold {
			needs = append(needs, dischargeNeed{pos: pos, demandKWh: fc.At(pos).ImportDemandKWh})
			last = pos
		}
	}
	return needs, last
}

// buildSources collects charging candidates strictly before the last
// expensive slot, cheapest first. Solar surplus charges at the feed-in
// tariff (the forgone export revenue); any non-expensive slot charges
// from the grid at spot.
func (h Heuristic) buildSources(series []model.PriceInterval, fc *forecast.Series, params model.BatteryParams, threshold float64, lastExpensive int) []*chargeSource {
	maxSlot := params.MaxChargePerIntervalKWh()
	var sources []*chargeSource
	for pos := 0; pos < lastExpensive; pos++ {
		e := fc.At(pos)
		switch {
		case e.SolarSurplusKWh > energyEpsilon:
			sources = append(sources, &chargeSource{
				pos:    pos,
				price:  h.FeedInTariff,
				capKWh: e.SolarSurplusKWh,
				solar:  true,
			})
		case series[pos].Total <= threshold:
			sources = append(sources, &chargeSource{
				pos:    pos,
				price:  series[pos].Total,
				capKWh: maxSlot,
			})
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].price != sources[j].price {
			return sources[i].price < sources[j].price
		}
		return sources[i].pos < sources[j].pos
	})
	return sources
}

// existingEligible gates discharging already-stored energy. Without a
// configured cost basis existing energy is always eligible.
func (h Heuristic) existingEligible(price float64, params model.BatteryParams) bool {
	if params.BatteryCostPerKWh <= 0 {
		return true
	}
	return price > params.BatteryCostPerKWh/params.EtaDischarge()+params.MinProfitPerKWh
}

type assignment struct {
	src *chargeSource
	kWh float64
}

// assignSources walks the sorted candidate pool for one discharge need.
// Sources at or after the discharge position cannot serve it, and the
// walk stops at the first unprofitable candidate: the pool is sorted by
// price, so nothing later can be cheaper.
func (h Heuristic) assignSources(sources []*chargeSource, dischargePos int, dischargePrice, remaining, headroom float64, params model.BatteryParams) ([]assignment, float64) {
	var assigns []assignment
	for _, src := range sources {
		if remaining <= energyEpsilon || headroom <= 0 {
			break
		}
		if src.pos >= dischargePos {
			continue
		}
		if dischargePrice-src.price*(1+params.EfficiencyLoss) <= params.MinProfitPerKWh {
			break
		}
		capLeft := src.capKWh - src.assigned
		if capLeft <= 0 {
			continue
		}
		amt := capLeft
		if remaining < amt {
			amt = remaining
		}
		if headroom < amt {
			amt = headroom
		}
		assigns = append(assigns, assignment{src: src, kWh: amt})
		remaining -= amt
		headroom -= amt
	}
	return assigns, headroom
}
