package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/mesplan/core/factory"
	corelogger "github.com/kilianp07/mesplan/core/logger"
	coresolver "github.com/kilianp07/mesplan/core/solver"
	"github.com/kilianp07/mesplan/infra/logger"
)

const (
	// DefaultTolerance is passed to lp.Simplex when none is configured.
	DefaultTolerance = 1e-9
	// FeasibilityTolerance is the largest constraint violation accepted from
	// a solve that ended with a conditioning warning.
	FeasibilityTolerance = 1e-6
)

// Simplex solves programs with gonum's dense simplex implementation. It
// suits small programs; the dense tableau grows with rows times columns.
type Simplex struct {
	// Tolerance is the optimality tolerance handed to lp.Simplex.
	Tolerance float64
	// Timeout bounds each solve. Zero relies on the context deadline only.
	Timeout time.Duration
	// MaxNodes bounds branch-and-bound on mixed-integer programs.
	MaxNodes int
	// Concurrency caps the number of lp.Simplex calls running at once,
	// abandoned ones included. Zero means GOMAXPROCS.
	Concurrency int
	Log         logger.Logger

	slotsOnce sync.Once
	slots     chan struct{}
}

func init() {
	_ = coresolver.Register("simplex", func(conf map[string]any) (coresolver.Engine, error) {
		var c struct {
			Tolerance      float64 `json:"tolerance"`
			TimeoutSeconds float64 `json:"timeout_seconds"`
			MaxNodes       int     `json:"max_nodes"`
			Concurrency    int     `json:"concurrency"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		s := NewSimplex(c.Tolerance, time.Duration(c.TimeoutSeconds*float64(time.Second)), logger.New("simplex"))
		s.MaxNodes, s.Concurrency = c.MaxNodes, c.Concurrency
		return s, nil
	})
}

// NewSimplex returns a Simplex engine with defaults applied. A nil log
// discards messages.
func NewSimplex(tol float64, timeout time.Duration, log logger.Logger) *Simplex {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return &Simplex{Tolerance: tol, Timeout: timeout, Log: log}
}

// simplexSolve points to the function used to solve the standard-form LP. It
// can be overridden in tests to simulate slow or failing solves.
var simplexSolve = lp.Simplex

type outcome struct {
	x   []float64
	err error
}

// Solve presolves p, converts it to standard form and runs lp.Simplex,
// through branch-and-bound when p has integer variables or exclusive pairs.
func (s *Simplex) Solve(ctx context.Context, p *coresolver.Program) (coresolver.Result, error) {
	start := time.Now()
	if err := p.Validate(); err != nil {
		return coresolver.Result{}, fmt.Errorf("invalid program: %w", err)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	var res coresolver.Result
	var err error
	if p.IsMIP() {
		res, err = branchAndBound(ctx, p, s.solveLP, s.MaxNodes, corelogger.OrNop(s.Log))
	} else {
		res, err = s.solveLP(ctx, p)
	}
	res.SolveTime = time.Since(start)
	return res, err
}

// solveLP solves the continuous relaxation of p. A solve still running when
// the deadline passes is abandoned and reported as timed out. Its goroutine
// keeps a concurrency slot until lp.Simplex returns, so later solves queue
// behind it instead of piling up.
func (s *Simplex) solveLP(ctx context.Context, p *coresolver.Program) (coresolver.Result, error) {
	start := time.Now()
	log := corelogger.OrNop(s.Log)
	red, status := presolve(p)
	if status != nil {
		return coresolver.Result{Status: *status}, nil
	}
	sf := toStandard(red.prog)
	log.Debugf("solving %d rows x %d columns (%d variables, %d constraints before presolve)", sf.numRows(), len(sf.c), len(p.Vars), len(p.Constraints))

	slots := s.slotPool()
	select {
	case slots <- struct{}{}:
	case <-ctx.Done():
		log.Warnf("no solver slot free after %s: %v", time.Since(start), ctx.Err())
		return coresolver.Result{Status: coresolver.StatusTimedOut}, nil
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() { <-slots }()
		x, err := sf.solve(s.tolerance())
		done <- outcome{x: x, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		log.Warnf("solve abandoned after %s: %v", time.Since(start), ctx.Err())
		return coresolver.Result{Status: coresolver.StatusTimedOut}, nil
	}
	var cond mat.Condition
	switch {
	case out.err == nil:
	case errors.As(out.err, &cond) && out.x != nil:
		// lp.Simplex stops on an ill-conditioned basis and returns the last
		// feasible vertex; keep it only if it satisfies the program.
		x := red.expand(sf.unshift(out.x, s.tolerance()))
		if v := p.Violation(x); v > FeasibilityTolerance {
			return coresolver.Result{}, fmt.Errorf("simplex: %w (violation %g)", out.err, v)
		}
		log.Warnf("simplex stopped on an ill-conditioned basis (%v), keeping last vertex", out.err)
	case errors.Is(out.err, lp.ErrInfeasible):
		return coresolver.Result{Status: coresolver.StatusInfeasible}, nil
	case errors.Is(out.err, lp.ErrUnbounded):
		return coresolver.Result{Status: coresolver.StatusUnbounded}, nil
	default:
		return coresolver.Result{}, fmt.Errorf("simplex: %w", out.err)
	}
	x := red.expand(sf.unshift(out.x, s.tolerance()))
	return coresolver.Result{
		Status:    coresolver.StatusOptimal,
		Objective: p.Objective(x),
		Values:    x,
		SolveTime: time.Since(start),
	}, nil
}

func (s *Simplex) slotPool() chan struct{} {
	s.slotsOnce.Do(func() {
		n := s.Concurrency
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		s.slots = make(chan struct{}, n)
	})
	return s.slots
}

func (s *Simplex) tolerance() float64 {
	if s.Tolerance <= 0 {
		return DefaultTolerance
	}
	return s.Tolerance
}

// standardForm is min cᵀy s.t. A y = b, y >= 0 where the first columns are
// the program variables shifted by their lower bound.
type standardForm struct {
	lower []float64
	upper []float64
	c     []float64
	rows  [][]float64
	b     []float64
}

func (sf *standardForm) numRows() int { return len(sf.rows) }

// toStandard builds the standard form of a presolved program: every
// variable appears in some row and no row is empty. Finite upper bounds
// become rows with their own slack.
func toStandard(p *coresolver.Program) *standardForm {
	nv := len(p.Vars)
	type denseRow struct {
		coef  map[int]float64
		slack float64
		rhs   float64
	}
	kept := make([]denseRow, 0, len(p.Constraints))
	for _, c := range p.Constraints {
		d := denseRow{coef: map[int]float64{}, rhs: c.RHS}
		for _, t := range c.Terms {
			d.coef[int(t.Var)] += t.Coef
			d.rhs -= t.Coef * p.Vars[t.Var].Lower
		}
		switch c.Sense {
		case coresolver.LessEq:
			d.slack = 1
		case coresolver.GreaterEq:
			d.slack = -1
		}
		kept = append(kept, d)
	}
	sf := &standardForm{lower: make([]float64, nv), upper: make([]float64, nv)}
	for i, v := range p.Vars {
		sf.lower[i], sf.upper[i] = v.Lower, v.Upper
		if !math.IsInf(v.Upper, 1) {
			kept = append(kept, denseRow{coef: map[int]float64{i: 1}, slack: 1, rhs: v.Upper - v.Lower})
		}
	}

	nslack := 0
	for _, r := range kept {
		if r.slack != 0 {
			nslack++
		}
	}
	n := nv + nslack
	sf.c = make([]float64, n)
	for i, v := range p.Vars {
		sf.c[i] = v.Cost
	}
	sf.rows = make([][]float64, len(kept))
	sf.b = make([]float64, len(kept))
	next := nv
	for i, r := range kept {
		dense := make([]float64, n)
		for col, v := range r.coef {
			dense[col] = v
		}
		if r.slack != 0 {
			dense[next] = r.slack
			next++
		}
		rhs := r.rhs
		if rhs < 0 {
			for j := range dense {
				dense[j] = -dense[j]
			}
			rhs = -rhs
		}
		sf.rows[i] = dense
		sf.b[i] = rhs
	}
	return sf
}

func (sf *standardForm) solve(tol float64) (x []float64, err error) {
	if len(sf.rows) == 0 {
		return make([]float64, len(sf.c)), nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lp panic: %v", r)
		}
	}()
	a := mat.NewDense(len(sf.rows), len(sf.c), nil)
	for i, r := range sf.rows {
		a.SetRow(i, r)
	}
	_, x, err = simplexSolve(sf.c, a, sf.b, tol, nil)
	return x, err
}

// unshift maps standard-form values back to program variables, clamping
// round-off outside the bounds.
func (sf *standardForm) unshift(y []float64, tol float64) []float64 {
	x := make([]float64, len(sf.lower))
	for i := range x {
		v := math.Min(math.Max(sf.lower[i]+y[i], sf.lower[i]), sf.upper[i])
		if math.Abs(v) < tol {
			v = 0
		}
		x[i] = v
	}
	return x
}
