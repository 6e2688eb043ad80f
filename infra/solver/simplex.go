// Package solver adapts gonum's simplex implementation to the scheduler's
// Solver port.
package solver

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/homebatt/homebatt/core/scheduler"
)

// Simplex solves named-variable linear programs with
// gonum.org/v1/gonum/optimize/convex/lp.
type Simplex struct {
	// Tol is the simplex termination tolerance.
	Tol float64
}

// NewSimplex returns a solver with the default tolerance.
func NewSimplex() *Simplex { return &Simplex{Tol: 1e-7} }

// lpSimplex points to the gonum solve call. Tests override it to simulate
// solver failures.
var lpSimplex = lp.Simplex

// Solve converts the problem into general LP form (minimize c'x subject to
// G*x <= h, A*x = b) and runs the simplex method. Variable non-negativity
// is enforced through explicit rows because lp.Convert treats inputs as
// free variables.
func (s *Simplex) Solve(p scheduler.Problem) (scheduler.Solution, error) {
	if len(p.Minimize) == 0 {
		return scheduler.Solution{}, errors.New("solver: empty objective")
	}

	// Deterministic ordering: identical problems must produce identical
	// matrices and therefore identical solutions.
	names := make([]string, 0, len(p.Minimize))
	for name := range p.Minimize {
		names = append(names, name)
	}
	sort.Strings(names)
	col := make(map[string]int, len(names))
	for i, name := range names {
		col[name] = i
	}
	n := len(names)

	c := make([]float64, n)
	for i, name := range names {
		c[i] = p.Minimize[name]
	}

	consNames := make([]string, 0, len(p.Constraints))
	for name := range p.Constraints {
		consNames = append(consNames, name)
	}
	sort.Strings(consNames)

	type row struct {
		coeffs map[string]float64
		rhs    float64
		neg    bool // row applies with negated coefficients (>= bound)
	}
	var ineq, eq []row
	for _, name := range consNames {
		con := p.Constraints[name]
		for v := range con.Coeffs {
			if _, ok := col[v]; !ok {
				return scheduler.Solution{}, fmt.Errorf("solver: constraint %s references unknown variable %s", name, v)
			}
		}
		switch {
		case con.Min == con.Max:
			eq = append(eq, row{coeffs: con.Coeffs, rhs: con.Max})
		default:
			if !isInf(con.Max) {
				ineq = append(ineq, row{coeffs: con.Coeffs, rhs: con.Max})
			}
			if !isNegInf(con.Min) {
				ineq = append(ineq, row{coeffs: con.Coeffs, rhs: -con.Min, neg: true})
			}
		}
	}

	// Non-negativity rows for every variable.
	g := mat.NewDense(len(ineq)+n, n, nil)
	h := make([]float64, len(ineq)+n)
	for r, rw := range ineq {
		for v, coef := range rw.coeffs {
			if rw.neg {
				coef = -coef
			}
			g.Set(r, col[v], coef)
		}
		h[r] = rw.rhs
	}
	for i := 0; i < n; i++ {
		g.Set(len(ineq)+i, i, -1)
		h[len(ineq)+i] = 0
	}

	var aMat *mat.Dense
	var b []float64
	if len(eq) > 0 {
		aMat = mat.NewDense(len(eq), n, nil)
		b = make([]float64, len(eq))
		for r, rw := range eq {
			for v, coef := range rw.coeffs {
				aMat.Set(r, col[v], coef)
			}
			b[r] = rw.rhs
		}
	}

	var cStd []float64
	var aStd *mat.Dense
	var bStd []float64
	if aMat != nil {
		cStd, aStd, bStd = lp.Convert(c, g, h, aMat, b)
	} else {
		cStd, aStd, bStd = lp.Convert(c, g, h, nil, nil)
	}

	tol := s.Tol
	if tol <= 0 {
		tol = 1e-7
	}
	opt, sol, err := lpSimplex(cStd, aStd, bStd, tol, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return scheduler.Solution{}, scheduler.ErrInfeasible
		}
		return scheduler.Solution{}, fmt.Errorf("solver: %w", err)
	}

	// Convert splits each free variable into positive and negative parts;
	// recover the original values from their difference.
	values := make(map[string]float64, n)
	for i, name := range names {
		v := sol[i] - sol[n+i]
		if v < 0 {
			v = 0
		}
		values[name] = v
	}
	return scheduler.Solution{Objective: opt, Values: values}, nil
}

func isInf(f float64) bool    { return f > 1e300 }
func isNegInf(f float64) bool { return f < -1e300 }
