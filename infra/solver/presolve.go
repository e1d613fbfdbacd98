package solver

import (
	"math"
	"sort"

	coresolver "github.com/kilianp07/mesplan/core/solver"
)

// presolveTolerance is the slack allowed when checking rows that presolve
// emptied and bounds that singleton rows tightened.
const presolveTolerance = 1e-9

// reduction is a presolved program together with the mapping back to the
// variables of the original one. Integer and exclusivity markers are
// ignored: branching works on the original program.
type reduction struct {
	prog *coresolver.Program
	// col maps original variables to reduced ones; -1 marks variables
	// removed at value[i].
	col   []int
	value []float64
	// lower and upper are the tightened bounds of the original variables.
	lower []float64
	upper []float64
}

type presolveRow struct {
	name   string
	coef   map[int]float64
	rhs    float64
	sense  coresolver.Sense
	active bool
}

// presolve removes fixed variables, turns singleton rows into bounds, drops
// empty rows and fixes variables no row references at their cheapest bound.
// A non-nil status means presolve decided the outcome.
func presolve(p *coresolver.Program) (*reduction, *coresolver.Status) {
	nv := len(p.Vars)
	r := &reduction{
		col:   make([]int, nv),
		value: make([]float64, nv),
		lower: make([]float64, nv),
		upper: make([]float64, nv),
	}
	removed := make([]bool, nv)
	occurs := make([][]int, nv)
	rows := make([]*presolveRow, len(p.Constraints))
	for i, c := range p.Constraints {
		row := &presolveRow{name: c.Name, coef: map[int]float64{}, rhs: c.RHS, sense: c.Sense, active: true}
		for _, t := range c.Terms {
			row.coef[int(t.Var)] += t.Coef
		}
		for v, k := range row.coef {
			if k == 0 {
				delete(row.coef, v)
				continue
			}
			occurs[v] = append(occurs[v], i)
		}
		rows[i] = row
	}
	for i, v := range p.Vars {
		r.lower[i], r.upper[i] = v.Lower, v.Upper
	}
	infeasible := func() (*reduction, *coresolver.Status) {
		st := coresolver.StatusInfeasible
		return nil, &st
	}

	for changed := true; changed; {
		changed = false
		for i := range p.Vars {
			if removed[i] || r.lower[i] != r.upper[i] {
				continue
			}
			removed[i], r.value[i] = true, r.lower[i]
			for _, ri := range occurs[i] {
				row := rows[ri]
				if k, ok := row.coef[i]; ok {
					row.rhs -= k * r.value[i]
					delete(row.coef, i)
				}
			}
			changed = true
		}
		for _, row := range rows {
			if !row.active {
				continue
			}
			switch len(row.coef) {
			case 0:
				if !emptyRowHolds(row) {
					return infeasible()
				}
				row.active = false
				changed = true
			case 1:
				for v, k := range row.coef {
					if !r.tighten(v, k, row) {
						return infeasible()
					}
				}
				row.active = false
				changed = true
			}
		}
	}

	used := make([]bool, nv)
	for _, row := range rows {
		if !row.active {
			continue
		}
		for v := range row.coef {
			used[v] = true
		}
	}
	red := &coresolver.Program{Constant: p.Constant}
	for i, v := range p.Vars {
		switch {
		case removed[i]:
			r.col[i] = -1
			red.Constant += v.Cost * r.value[i]
		case used[i]:
			r.col[i] = len(red.Vars)
			red.AddVar(v.Name, r.lower[i], r.upper[i], v.Cost)
		case v.Cost < 0 && math.IsInf(r.upper[i], 1):
			st := coresolver.StatusUnbounded
			return nil, &st
		default:
			r.col[i] = -1
			r.value[i] = r.lower[i]
			if v.Cost < 0 {
				r.value[i] = r.upper[i]
			}
			red.Constant += v.Cost * r.value[i]
		}
	}
	for _, row := range rows {
		if !row.active {
			continue
		}
		terms := make([]coresolver.Term, 0, len(row.coef))
		for v, k := range row.coef {
			terms = append(terms, coresolver.Term{Var: coresolver.VarID(r.col[v]), Coef: k})
		}
		sort.Slice(terms, func(a, b int) bool { return terms[a].Var < terms[b].Var })
		red.AddConstraint(row.name, terms, row.sense, row.rhs)
	}
	r.prog = red
	return r, nil
}

// tighten applies the singleton row k·x[v] (sense) rhs to the bounds of v.
// It reports false when the bounds cross.
func (r *reduction) tighten(v int, k float64, row *presolveRow) bool {
	bound := row.rhs / k
	lo, up := r.lower[v], r.upper[v]
	sense := row.sense
	if k < 0 {
		switch sense {
		case coresolver.LessEq:
			sense = coresolver.GreaterEq
		case coresolver.GreaterEq:
			sense = coresolver.LessEq
		}
	}
	switch sense {
	case coresolver.LessEq:
		up = math.Min(up, bound)
	case coresolver.GreaterEq:
		lo = math.Max(lo, bound)
	case coresolver.Equal:
		lo, up = math.Max(lo, bound), math.Min(up, bound)
	}
	if lo > up {
		if lo-up > presolveTolerance*math.Max(1, math.Abs(bound)) {
			return false
		}
		// round-off on a tight bound: pin the variable
		if sense == coresolver.LessEq {
			lo = up
		} else {
			up = lo
		}
	}
	r.lower[v], r.upper[v] = lo, up
	return true
}

func emptyRowHolds(row *presolveRow) bool {
	tol := presolveTolerance * math.Max(1, math.Abs(row.rhs))
	switch row.sense {
	case coresolver.LessEq:
		return row.rhs >= -tol
	case coresolver.GreaterEq:
		return row.rhs <= tol
	default:
		return math.Abs(row.rhs) <= tol
	}
}

// expand maps values of the reduced program back to the original variables,
// clamping round-off outside the tightened bounds.
func (r *reduction) expand(y []float64) []float64 {
	x := make([]float64, len(r.col))
	for i, c := range r.col {
		if c < 0 {
			x[i] = r.value[i]
			continue
		}
		x[i] = math.Min(math.Max(y[c], r.lower[i]), r.upper[i])
	}
	return x
}
