package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/homebatt/homebatt/core/forecast"
	"github.com/homebatt/homebatt/core/model"
)

// LP is the exact scheduler. It expresses the same physical model as the
// heuristic as one linear program and hands it to the Solver port. Every
// failure mode (bad inputs, solver error, infeasibility, non-numeric
// objective) is a soft failure: Schedule returns nil and the caller falls
// back to the heuristic.
type LP struct {
	Solver          Solver
	FeedInTariff    float64
	MaxHorizonSlots int
}

// NewLP returns an LP scheduler backed by the given solver.
func NewLP(solver Solver, cfg Config) LP {
	return LP{Solver: solver, FeedInTariff: cfg.FeedInTariff, MaxHorizonSlots: cfg.MaxHorizonSlots}
}

// Variables per slot t:
//
//	c_t   grid charge (kWh into the battery)
//	sc_t  solar-sourced charge (kWh into the battery)
//	d0_t  discharge delivered from energy stored before the horizon
//	d1_t  discharge delivered from energy charged during the horizon
//	s_t   state of charge (kWh)
//	e_t   portion of s_t attributable to originally stored energy
func varName(prefix string, t int) string { return fmt.Sprintf("%s_%d", prefix, t) }

// Schedule builds and solves the LP. A nil return means "no LP strategy".
func (l LP) Schedule(series []model.PriceInterval, params model.BatteryParams, fc *forecast.Series) *model.Strategy {
	if l.Solver == nil || len(series) == 0 {
		return nil
	}
	if err := params.Validate(); err != nil {
		return nil
	}
	if params.TargetEnergyKWh() <= 0 {
		return nil
	}
	if l.MaxHorizonSlots > 0 && len(series) > l.MaxHorizonSlots {
		series = series[:l.MaxHorizonSlots]
	}

	prob := l.buildProblem(series, params, fc)
	sol, err := l.Solver.Solve(prob)
	if err != nil {
		return nil
	}
	if math.IsNaN(sol.Objective) || math.IsInf(sol.Objective, 0) {
		return nil
	}
	return l.extract(series, params, fc, sol)
}

func (l LP) buildProblem(series []model.PriceInterval, params model.BatteryParams, fc *forecast.Series) Problem {
	n := len(series)
	maxSlot := params.MaxChargePerIntervalKWh()
	etaC := params.EtaCharge()
	etaD := params.EtaDischarge()
	e0 := params.CurrentEnergyKWh()
	costBasis := params.BatteryCostPerKWh

	obj := make(map[string]float64, 6*n)
	cons := make(map[string]Constraint, 10*n)

	for t := 0; t < n; t++ {
		price := series[t].Total
		fcT := fc.At(t)
		c := varName("c", t)
		sc := varName("sc", t)
		d0 := varName("d0", t)
		d1 := varName("d1", t)
		s := varName("s", t)
		e := varName("e", t)

		// Grid charging pays spot; solar charging pays the forgone export
		// credit; discharge earns avoided imports minus the required
		// margin. Pre-horizon energy additionally carries its cost basis.
		obj[c] = price
		obj[sc] = l.FeedInTariff
		obj[d0] = -price + params.MinProfitPerKWh + costBasis/etaD
		obj[d1] = -price + params.MinProfitPerKWh
		obj[s] = 0
		obj[e] = 0

		cons[varName("chargeCap", t)] = Constraint{
			Coeffs: map[string]float64{c: 1, sc: 1},
			Min:    math.Inf(-1), Max: maxSlot,
		}
		cons[varName("solarCap", t)] = Constraint{
			Coeffs: map[string]float64{sc: 1},
			Min:    math.Inf(-1), Max: fcT.SolarSurplusKWh,
		}
		cons[varName("dischargeCap", t)] = Constraint{
			Coeffs: map[string]float64{d0: 1, d1: 1},
			Min:    math.Inf(-1), Max: maxSlot,
		}
		// Never discharge into export.
		cons[varName("demandCap", t)] = Constraint{
			Coeffs: map[string]float64{d0: 1, d1: 1},
			Min:    math.Inf(-1), Max: fcT.ImportDemandKWh,
		}
		cons[varName("socBounds", t)] = Constraint{
			Coeffs: map[string]float64{s: 1},
			Min:    params.MinEnergyKWh, Max: params.TargetEnergyKWh(),
		}
		cons[varName("origMax", t)] = Constraint{
			Coeffs: map[string]float64{e: 1},
			Min:    math.Inf(-1), Max: e0,
		}
		cons[varName("origLink", t)] = Constraint{
			Coeffs: map[string]float64{e: 1, s: -1},
			Min:    math.Inf(-1), Max: 0,
		}

		// Dynamics: s_t = s_{t-1} + etaC*(c_t+sc_t) - (d0_t+d1_t)/etaD,
		// e_t = e_{t-1} - d0_t/etaD, with the t=0 predecessor being the
		// current stored energy.
		sDyn := map[string]float64{s: 1, c: -etaC, sc: -etaC, d0: 1 / etaD, d1: 1 / etaD}
		eDyn := map[string]float64{e: 1, d0: 1 / etaD}
		rhsS, rhsE := e0, e0
		if t > 0 {
			sDyn[varName("s", t-1)] = -1
			eDyn[varName("e", t-1)] = -1
			rhsS, rhsE = 0, 0
		}
		cons[varName("socDyn", t)] = Constraint{Coeffs: sDyn, Min: rhsS, Max: rhsS}
		cons[varName("origDyn", t)] = Constraint{Coeffs: eDyn, Min: rhsE, Max: rhsE}
	}

	return Problem{Minimize: obj, Constraints: cons}
}

// extract converts the solver assignment back into a Strategy. Values
// below the energy epsilon are numerical noise and are suppressed.
func (l LP) extract(series []model.PriceInterval, params model.BatteryParams, fc *forecast.Series, sol Solution) *model.Strategy {
	strat := &model.Strategy{
		GeneratedAt: time.Now(),
		Source:      model.SourceLP,
	}
	etaD := params.EtaDischarge()
	costBasis := params.BatteryCostPerKWh

	baseline := baselineCost(series, fc, l.FeedInTariff)
	optimized := baseline

	for t, iv := range series {
		fcT := fc.At(t)
		c := sol.Values[varName("c", t)]
		sc := sol.Values[varName("sc", t)]
		d0 := sol.Values[varName("d0", t)]
		d1 := sol.Values[varName("d1", t)]

		charge := c + sc
		discharge := d0 + d1
		if charge >= energyEpsilon {
			strat.ChargeIntervals = append(strat.ChargeIntervals, model.PlannedInterval{
				PriceInterval: iv,
				EnergyKWh:     charge,
				SolarSourced:  sc >= energyEpsilon && sc >= c,
			})
			strat.NeededKWh += charge
			optimized += c*iv.Total + sc*l.FeedInTariff
		}
		if discharge >= energyEpsilon {
			strat.DischargeIntervals = append(strat.DischargeIntervals, model.PlannedInterval{
				PriceInterval: iv,
				EnergyKWh:     discharge,
				DemandKWh:     fcT.ImportDemandKWh,
			})
			strat.ForecastedDemandKWh += fcT.ImportDemandKWh
			optimized -= discharge * iv.Total
			optimized += d0 / etaD * costBasis
		}
	}

	strat.Economics = economics(baseline, optimized)
	strat.Savings = strat.Economics.Savings
	return strat
}
