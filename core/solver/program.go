package solver

import (
	"fmt"
	"math"
)

// VarID indexes a variable of a Program.
type VarID int

// Sense is the relation of a linear constraint.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// Variable is a decision variable with bounds and objective cost. Upper may
// be +Inf.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
	Cost  float64
	// Integer restricts the variable to whole values.
	Integer bool
}

// Fixed reports whether the bounds pin the variable to a single value.
func (v Variable) Fixed() bool { return v.Lower == v.Upper }

// Term is a coefficient applied to a variable.
type Term struct {
	Var  VarID
	Coef float64
}

// Constraint is Σ terms (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Pair is two variables of which at most one may be non-zero.
type Pair struct {
	A, B VarID
}

// Program is a linear program: minimise Σ cost·x + Constant subject to the
// constraints and variable bounds. Integer variables and Exclusive pairs
// make it a mixed-integer program.
type Program struct {
	Vars        []Variable
	Constraints []Constraint
	Exclusive   []Pair
	Constant    float64
}

// AddVar appends a variable and returns its id.
func (p *Program) AddVar(name string, lower, upper, cost float64) VarID {
	p.Vars = append(p.Vars, Variable{Name: name, Lower: lower, Upper: upper, Cost: cost})
	return VarID(len(p.Vars) - 1)
}

// AddIntVar appends an integer variable and returns its id.
func (p *Program) AddIntVar(name string, lower, upper, cost float64) VarID {
	v := p.AddVar(name, lower, upper, cost)
	p.Vars[v].Integer = true
	return v
}

// AddExclusive forbids a and b from being non-zero together. Both must have
// a lower bound of zero.
func (p *Program) AddExclusive(a, b VarID) {
	p.Exclusive = append(p.Exclusive, Pair{A: a, B: b})
}

// IsMIP reports whether p has integer variables or exclusive pairs.
func (p *Program) IsMIP() bool {
	if len(p.Exclusive) > 0 {
		return true
	}
	for _, v := range p.Vars {
		if v.Integer {
			return true
		}
	}
	return false
}

// Relaxation returns the continuous relaxation of p under the given
// variable bounds. Constraints are shared.
func (p *Program) Relaxation(lower, upper []float64) *Program {
	q := &Program{Constraints: p.Constraints, Constant: p.Constant}
	q.Vars = make([]Variable, len(p.Vars))
	for i, v := range p.Vars {
		v.Lower, v.Upper, v.Integer = lower[i], upper[i], false
		q.Vars[i] = v
	}
	return q
}

// AddCost adds c to the objective coefficient of v.
func (p *Program) AddCost(v VarID, c float64) { p.Vars[v].Cost += c }

// AddConstraint appends a constraint and returns its index. Terms with a
// zero coefficient are dropped.
func (p *Program) AddConstraint(name string, terms []Term, sense Sense, rhs float64) int {
	kept := terms[:0:0]
	for _, t := range terms {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	p.Constraints = append(p.Constraints, Constraint{Name: name, Terms: kept, Sense: sense, RHS: rhs})
	return len(p.Constraints) - 1
}

// Validate checks bounds and variable references.
func (p *Program) Validate() error {
	for i, v := range p.Vars {
		if math.IsNaN(v.Lower) || math.IsNaN(v.Upper) || math.IsNaN(v.Cost) {
			return fmt.Errorf("variable %s: NaN bound or cost", v.Name)
		}
		if math.IsInf(v.Lower, 0) {
			return fmt.Errorf("variable %s: lower bound must be finite", v.Name)
		}
		if v.Upper < v.Lower {
			return fmt.Errorf("variable %s (%d): upper bound %v below lower bound %v", v.Name, i, v.Upper, v.Lower)
		}
	}
	for _, e := range p.Exclusive {
		for _, v := range []VarID{e.A, e.B} {
			if int(v) < 0 || int(v) >= len(p.Vars) {
				return fmt.Errorf("exclusive pair: unknown variable %d", v)
			}
			if p.Vars[v].Lower != 0 {
				return fmt.Errorf("exclusive pair: variable %s must have a zero lower bound", p.Vars[v].Name)
			}
		}
	}
	for _, c := range p.Constraints {
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("constraint %s: right-hand side must be finite", c.Name)
		}
		for _, t := range c.Terms {
			if int(t.Var) < 0 || int(t.Var) >= len(p.Vars) {
				return fmt.Errorf("constraint %s: unknown variable %d", c.Name, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("constraint %s: coefficient of %s must be finite", c.Name, p.Vars[t.Var].Name)
			}
		}
	}
	return nil
}

// Objective evaluates the objective at x.
func (p *Program) Objective(x []float64) float64 {
	obj := p.Constant
	for i, v := range p.Vars {
		obj += v.Cost * x[i]
	}
	return obj
}

// Activity returns Σ terms of constraint i evaluated at x.
func (p *Program) Activity(i int, x []float64) float64 {
	var sum float64
	for _, t := range p.Constraints[i].Terms {
		sum += t.Coef * x[t.Var]
	}
	return sum
}

// Residual returns activity − RHS for constraint i.
func (p *Program) Residual(i int, x []float64) float64 {
	return p.Activity(i, x) - p.Constraints[i].RHS
}

// Violation returns the largest bound, integrality, exclusivity or
// constraint violation at x.
func (p *Program) Violation(x []float64) float64 {
	var worst float64
	for i, v := range p.Vars {
		worst = math.Max(worst, v.Lower-x[i])
		if !math.IsInf(v.Upper, 1) {
			worst = math.Max(worst, x[i]-v.Upper)
		}
		if v.Integer {
			worst = math.Max(worst, math.Abs(x[i]-math.Round(x[i])))
		}
	}
	for _, e := range p.Exclusive {
		worst = math.Max(worst, math.Min(math.Abs(x[e.A]), math.Abs(x[e.B])))
	}
	for i, c := range p.Constraints {
		r := p.Residual(i, x)
		switch c.Sense {
		case LessEq:
			worst = math.Max(worst, r)
		case GreaterEq:
			worst = math.Max(worst, -r)
		case Equal:
			worst = math.Max(worst, math.Abs(r))
		}
	}
	return worst
}
