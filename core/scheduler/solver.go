package scheduler

import "errors"

// ErrInfeasible is returned by a Solver when no feasible point exists.
var ErrInfeasible = errors.New("lp: infeasible")

// Constraint is one linear constraint over named variables. Min and Max
// may be negative/positive infinity for one-sided constraints; Min == Max
// expresses an equality.
type Constraint struct {
	Coeffs map[string]float64
	Min    float64
	Max    float64
}

// Problem is a linear program in named-variable form. All variables are
// implicitly non-negative.
type Problem struct {
	// Minimize maps variable names to objective coefficients.
	Minimize    map[string]float64
	Constraints map[string]Constraint
}

// Solution holds the optimal objective value and variable assignment.
type Solution struct {
	Objective float64
	Values    map[string]float64
}

// Solver solves a linear program. Implementations return ErrInfeasible for
// infeasible problems; any error is treated by the caller as a soft
// failure, never propagated.
type Solver interface {
	Solve(Problem) (Solution, error)
}
