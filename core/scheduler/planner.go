package scheduler

import (
	"github.com/homebatt/homebatt/core/forecast"
	"github.com/homebatt/homebatt/core/model"
)

// Planner selects between the LP and heuristic schedulers. The LP is
// optional capability: when it is absent or returns no strategy, planning
// silently degrades to the heuristic.
type Planner struct {
	lp        *LP
	heuristic Heuristic
	lpFirst   bool
}

// NewPlanner wires the scheduler pair. solver may be nil, which disables
// the LP path entirely.
func NewPlanner(solver Solver, cfg Config) *Planner {
	p := &Planner{
		heuristic: NewHeuristic(cfg),
		lpFirst:   cfg.LPFirst,
	}
	if solver != nil {
		lp := NewLP(solver, cfg)
		p.lp = &lp
	}
	return p
}

// Schedule computes the strategy for the current tick. It never returns
// nil: the heuristic result is the guaranteed floor.
func (p *Planner) Schedule(series []model.PriceInterval, params model.BatteryParams, fc *forecast.Series) *model.Strategy {
	if p.lpFirst && p.lp != nil {
		if s := p.lp.Schedule(series, params, fc); s != nil {
			return s
		}
	}
	return p.heuristic.Schedule(series, params, fc)
}
