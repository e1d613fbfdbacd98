package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/mesplan/core/factory"
	corelogger "github.com/kilianp07/mesplan/core/logger"
	coresolver "github.com/kilianp07/mesplan/core/solver"
	"github.com/kilianp07/mesplan/infra/logger"
)

const (
	// DefaultIPMTolerance is the relative primal, dual and gap tolerance of
	// the interior-point method.
	DefaultIPMTolerance = 1e-8
	// DefaultMaxIterations bounds the interior-point iterations.
	DefaultMaxIterations = 200

	// looseTolerance is accepted when the iterations stall.
	looseTolerance = 1e-6
	// divergence marks an iterate as escaping to infinity.
	divergence = 1e12
	// stepFraction keeps iterates strictly inside the positive orthant.
	stepFraction = 0.9995
)

// ErrNotConverged is returned when the interior-point method stops without
// reaching a verdict.
var ErrNotConverged = errors.New("ipm: no convergence")

// IPM solves programs with a Mehrotra predictor-corrector interior-point
// method on the normal equations. Row blocks coupled only through dense
// columns, like the representative days of a hub model tied together by
// capacity variables, are factored independently.
type IPM struct {
	Tolerance     float64
	Timeout       time.Duration
	MaxIterations int
	// MaxNodes bounds branch-and-bound on mixed-integer programs.
	MaxNodes int
	Log      logger.Logger
}

func init() {
	_ = coresolver.Register("ipm", func(conf map[string]any) (coresolver.Engine, error) {
		var c struct {
			Tolerance      float64 `json:"tolerance"`
			TimeoutSeconds float64 `json:"timeout_seconds"`
			MaxIterations  int     `json:"max_iterations"`
			MaxNodes       int     `json:"max_nodes"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		s := NewIPM(c.Tolerance, time.Duration(c.TimeoutSeconds*float64(time.Second)), logger.New("ipm"))
		s.MaxIterations, s.MaxNodes = c.MaxIterations, c.MaxNodes
		return s, nil
	})
}

// NewIPM returns an IPM engine with defaults applied. A nil log discards
// messages.
func NewIPM(tol float64, timeout time.Duration, log logger.Logger) *IPM {
	if tol <= 0 {
		tol = DefaultIPMTolerance
	}
	return &IPM{Tolerance: tol, Timeout: timeout, MaxIterations: DefaultMaxIterations, Log: log}
}

// Solve presolves p and runs the interior-point method, through
// branch-and-bound when p has integer variables or exclusive pairs. The
// context is checked between iterations.
func (s *IPM) Solve(ctx context.Context, p *coresolver.Program) (coresolver.Result, error) {
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

func (s *IPM) solveLP(ctx context.Context, p *coresolver.Program) (coresolver.Result, error) {
	log := corelogger.OrNop(s.Log)
	red, status := presolve(p)
	if status != nil {
		return coresolver.Result{Status: *status}, nil
	}
	if len(red.prog.Constraints) == 0 {
		x := red.expand(nil)
		return coresolver.Result{Status: coresolver.StatusOptimal, Objective: p.Objective(x), Values: x}, nil
	}
	f := newIPMForm(red.prog)
	ne := newNormalSolver(f.m, f.cols)
	log.Debugf("ipm: %d rows x %d columns in %d blocks, %d dense columns (%d variables, %d constraints before presolve)",
		f.m, f.n, len(ne.blocks), len(ne.dense), len(p.Vars), len(p.Constraints))

	xs, st, err := f.run(ctx, ne, s.tolerance(), s.maxIterations(), log)
	if err != nil || st != coresolver.StatusOptimal {
		return coresolver.Result{Status: st}, err
	}
	x := red.expand(f.recover(xs))
	return coresolver.Result{Status: coresolver.StatusOptimal, Objective: p.Objective(x), Values: x}, nil
}

func (s *IPM) tolerance() float64 {
	if s.Tolerance <= 0 {
		return DefaultIPMTolerance
	}
	return s.Tolerance
}

func (s *IPM) maxIterations() int {
	if s.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return s.MaxIterations
}

type ipmEntry struct {
	row int
	val float64
}

// ipmForm is the scaled standard form min cᵀx s.t. Ax = b, 0 <= x <= u of a
// presolved program. Columns past nv are row slacks.
type ipmForm struct {
	m, n, nv int
	lower    []float64
	cols     [][]ipmEntry
	b, c, u  []float64
	colScale []float64
	bScale   float64
}

func newIPMForm(p *coresolver.Program) *ipmForm {
	m, nv := len(p.Constraints), len(p.Vars)
	f := &ipmForm{m: m, nv: nv, lower: make([]float64, nv), b: make([]float64, m)}
	f.cols = make([][]ipmEntry, nv, nv+m)
	for i, con := range p.Constraints {
		f.b[i] = con.RHS
		for _, t := range con.Terms {
			f.cols[t.Var] = append(f.cols[t.Var], ipmEntry{row: i, val: t.Coef})
			f.b[i] -= t.Coef * p.Vars[t.Var].Lower
		}
	}
	for i, con := range p.Constraints {
		switch con.Sense {
		case coresolver.LessEq:
			f.cols = append(f.cols, []ipmEntry{{row: i, val: 1}})
		case coresolver.GreaterEq:
			f.cols = append(f.cols, []ipmEntry{{row: i, val: -1}})
		}
	}
	f.n = len(f.cols)
	f.c = make([]float64, f.n)
	f.u = make([]float64, f.n)
	for j := range f.u {
		f.u[j] = math.Inf(1)
	}
	for j, v := range p.Vars {
		f.lower[j] = v.Lower
		f.c[j] = v.Cost
		f.u[j] = v.Upper - v.Lower
	}
	f.scale()
	return f
}

// scale equilibrates A with Ruiz iterations, then normalises b, u and c.
func (f *ipmForm) scale() {
	rowScale := make([]float64, f.m)
	f.colScale = make([]float64, f.n)
	for j := range f.colScale {
		f.colScale[j] = 1
	}
	rmax := make([]float64, f.m)
	for pass := 0; pass < 10; pass++ {
		for i := range rmax {
			rmax[i] = 0
		}
		for _, col := range f.cols {
			for _, e := range col {
				rmax[e.row] = math.Max(rmax[e.row], math.Abs(e.val))
			}
		}
		for i, r := range rmax {
			rowScale[i] = 1
			if r > 0 {
				rowScale[i] = 1 / math.Sqrt(r)
			}
			f.b[i] *= rowScale[i]
		}
		for j, col := range f.cols {
			var cmax float64
			for k := range col {
				col[k].val *= rowScale[col[k].row]
				cmax = math.Max(cmax, math.Abs(col[k].val))
			}
			if cmax == 0 {
				continue
			}
			s := 1 / math.Sqrt(cmax)
			for k := range col {
				col[k].val *= s
			}
			f.colScale[j] *= s
			f.c[j] *= s
			f.u[j] /= s
		}
	}
	f.bScale = math.Max(1, normInf(f.b))
	for i := range f.b {
		f.b[i] /= f.bScale
	}
	for j := range f.u {
		f.u[j] /= f.bScale
	}
	if cScale := math.Max(1, normInf(f.c)); cScale > 1 {
		for j := range f.c {
			f.c[j] /= cScale
		}
	}
}

// recover maps a scaled solution back to the presolved program variables.
func (f *ipmForm) recover(x []float64) []float64 {
	out := make([]float64, f.nv)
	for j := range out {
		out[j] = f.lower[j] + x[j]*f.colScale[j]*f.bScale
	}
	return out
}

// mulA accumulates A·v into dst.
func (f *ipmForm) mulA(dst, v []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for j, col := range f.cols {
		if v[j] == 0 {
			continue
		}
		for _, e := range col {
			dst[e.row] += e.val * v[j]
		}
	}
}

func (f *ipmForm) colDot(j int, y []float64) float64 {
	var s float64
	for _, e := range f.cols[j] {
		s += e.val * y[e.row]
	}
	return s
}

// ipmState holds the iterate: primal x and upper slack w, duals y, z (for
// x >= 0) and v (for w >= 0). w and v are zero for unbounded columns.
type ipmState struct {
	x, w, y, z, v []float64
}

type ipmDir struct {
	dx, dw, dy, dz, dv []float64
}

func newDir(m, n int) ipmDir {
	return ipmDir{dx: make([]float64, n), dw: make([]float64, n), dy: make([]float64, m), dz: make([]float64, n), dv: make([]float64, n)}
}

type ipmMeasure struct {
	pinf, dinf, gap, mu float64
}

func (q ipmMeasure) within(tol float64) bool {
	return q.pinf <= tol && q.dinf <= tol && q.gap <= tol
}

// run iterates until convergence, divergence, stall or cancellation and
// returns the scaled primal solution when optimal.
func (f *ipmForm) run(ctx context.Context, ne *normalSolver, tol float64, maxIter int, log corelogger.Logger) ([]float64, coresolver.Status, error) {
	m, n := f.m, f.n
	bounded := make([]bool, n)
	nc := n
	for j, u := range f.u {
		if !math.IsInf(u, 1) {
			bounded[j] = true
			nc++
		}
	}
	st := ipmState{x: make([]float64, n), w: make([]float64, n), y: make([]float64, m), z: make([]float64, n), v: make([]float64, n)}
	for j := range st.x {
		st.x[j], st.z[j] = 1, 1
		if bounded[j] {
			if f.u[j] < 2 {
				st.x[j] = f.u[j] / 2
			}
			st.w[j] = f.u[j] - st.x[j]
			st.v[j] = 1
		}
	}

	rb := make([]float64, m)
	ru := make([]float64, n)
	rc := make([]float64, n)
	theta := make([]float64, n)
	rhat := make([]float64, n)
	rhs := make([]float64, m)
	rxz := make([]float64, n)
	rwv := make([]float64, n)
	aff, dir := newDir(m, n), newDir(m, n)
	normB, normC, normU := normInf(f.b), normInf(f.c), 0.0
	for j, u := range f.u {
		if bounded[j] {
			normU = math.Max(normU, u)
		}
	}

	// direction solves the Newton system for the complementarity targets
	// rxz and rwv using the current factorisation.
	direction := func(d ipmDir) error {
		for j := 0; j < n; j++ {
			r := rc[j] - rxz[j]/st.x[j]
			if bounded[j] {
				r += (rwv[j] - st.v[j]*ru[j]) / st.w[j]
			}
			rhat[j] = r * theta[j]
		}
		f.mulA(rhs, rhat)
		for i := range rhs {
			rhs[i] += rb[i]
		}
		if err := ne.solve(d.dy, rhs); err != nil {
			return err
		}
		for j := 0; j < n; j++ {
			d.dx[j] = theta[j]*f.colDot(j, d.dy) - rhat[j]
			d.dz[j] = (rxz[j] - st.z[j]*d.dx[j]) / st.x[j]
			if bounded[j] {
				d.dw[j] = ru[j] - d.dx[j]
				d.dv[j] = (rwv[j] - st.v[j]*d.dw[j]) / st.w[j]
			}
		}
		return nil
	}
	steps := func(d ipmDir) (float64, float64) {
		ap, ad := 1.0, 1.0
		for j := 0; j < n; j++ {
			ap = ratio(ap, st.x[j], d.dx[j])
			ad = ratio(ad, st.z[j], d.dz[j])
			if bounded[j] {
				ap = ratio(ap, st.w[j], d.dw[j])
				ad = ratio(ad, st.v[j], d.dv[j])
			}
		}
		return ap, ad
	}

	var last ipmMeasure
	for iter := 0; ; iter++ {
		f.mulA(rb, st.x)
		pobj, dobj := 0.0, 0.0
		var comp float64
		for i := range rb {
			rb[i] = f.b[i] - rb[i]
			dobj += f.b[i] * st.y[i]
		}
		pinf := normInf(rb) / (1 + normB)
		var dres float64
		for j := 0; j < n; j++ {
			pobj += f.c[j] * st.x[j]
			rc[j] = f.c[j] - f.colDot(j, st.y) - st.z[j] + st.v[j]
			dres = math.Max(dres, math.Abs(rc[j]))
			comp += st.x[j] * st.z[j]
			if bounded[j] {
				ru[j] = f.u[j] - st.x[j] - st.w[j]
				pinf = math.Max(pinf, math.Abs(ru[j])/(1+normU))
				dobj -= f.u[j] * st.v[j]
				comp += st.w[j] * st.v[j]
			}
		}
		q := ipmMeasure{
			pinf: pinf,
			dinf: dres / (1 + normC),
			gap:  math.Abs(pobj-dobj) / (1 + math.Abs(pobj)),
			mu:   comp / float64(nc),
		}
		if math.IsNaN(q.pinf) || math.IsNaN(q.dinf) || math.IsNaN(q.gap) {
			return f.verdict(nil, last, iter, log, "numerical breakdown")
		}
		last = q
		if q.within(tol) {
			log.Debugf("ipm converged in %d iterations (pinf %.1e, dinf %.1e, gap %.1e)", iter, q.pinf, q.dinf, q.gap)
			return st.x, coresolver.StatusOptimal, nil
		}
		if err := ctx.Err(); err != nil {
			log.Warnf("ipm stopped after %d iterations: %v", iter, err)
			return nil, coresolver.StatusTimedOut, nil
		}
		if math.Max(normInf(st.x), normInf(st.w)) > divergence {
			if q.dinf > looseTolerance {
				return nil, coresolver.StatusUnbounded, nil
			}
			return nil, coresolver.StatusInfeasible, nil
		}
		if math.Max(normInf(st.y), math.Max(normInf(st.z), normInf(st.v))) > divergence {
			return nil, coresolver.StatusInfeasible, nil
		}
		if iter >= maxIter {
			return f.verdict(st.x, q, iter, log, "iteration limit")
		}

		for j := 0; j < n; j++ {
			d := st.z[j] / st.x[j]
			if bounded[j] {
				d += st.v[j] / st.w[j]
			}
			theta[j] = math.Min(math.Max(1/d, 1e-14), 1e14)
		}
		if err := ne.factor(theta); err != nil {
			return f.verdict(st.x, q, iter, log, err.Error())
		}

		// predictor
		for j := 0; j < n; j++ {
			rxz[j] = -st.x[j] * st.z[j]
			rwv[j] = 0
			if bounded[j] {
				rwv[j] = -st.w[j] * st.v[j]
			}
		}
		if err := direction(aff); err != nil {
			return f.verdict(st.x, q, iter, log, err.Error())
		}
		ap, ad := steps(aff)
		var muAff float64
		for j := 0; j < n; j++ {
			muAff += (st.x[j] + ap*aff.dx[j]) * (st.z[j] + ad*aff.dz[j])
			if bounded[j] {
				muAff += (st.w[j] + ap*aff.dw[j]) * (st.v[j] + ad*aff.dv[j])
			}
		}
		muAff /= float64(nc)
		sigma := math.Min(1, math.Pow(muAff/q.mu, 3))

		// corrector
		target := sigma * q.mu
		for j := 0; j < n; j++ {
			rxz[j] = target - st.x[j]*st.z[j] - aff.dx[j]*aff.dz[j]
			if bounded[j] {
				rwv[j] = target - st.w[j]*st.v[j] - aff.dw[j]*aff.dv[j]
			}
		}
		if err := direction(dir); err != nil {
			return f.verdict(st.x, q, iter, log, err.Error())
		}
		ap, ad = steps(dir)
		ap, ad = stepFraction*ap, stepFraction*ad
		for j := 0; j < n; j++ {
			st.x[j] += ap * dir.dx[j]
			st.z[j] += ad * dir.dz[j]
			if bounded[j] {
				st.w[j] += ap * dir.dw[j]
				st.v[j] += ad * dir.dv[j]
			}
		}
		for i := range st.y {
			st.y[i] += ad * dir.dy[i]
		}
	}
}

// verdict classifies a run that stopped early. A nearly optimal iterate is
// kept. A dual residual that never closed means the primal is unbounded, a
// primal one that it is infeasible.
func (f *ipmForm) verdict(x []float64, q ipmMeasure, iter int, log corelogger.Logger, reason string) ([]float64, coresolver.Status, error) {
	switch {
	case x != nil && q.within(looseTolerance):
		log.Warnf("ipm stopped after %d iterations (%s), keeping iterate with pinf %.1e, dinf %.1e, gap %.1e", iter, reason, q.pinf, q.dinf, q.gap)
		return x, coresolver.StatusOptimal, nil
	case q.dinf > looseTolerance:
		return nil, coresolver.StatusUnbounded, nil
	case q.pinf > looseTolerance:
		return nil, coresolver.StatusInfeasible, nil
	}
	return nil, coresolver.StatusOptimal, fmt.Errorf("%w after %d iterations: %s", ErrNotConverged, iter, reason)
}

// ratio shrinks a so that v + a·d stays non-negative.
func ratio(a, v, d float64) float64 {
	if d < 0 {
		return math.Min(a, -v/d)
	}
	return a
}

func normInf(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
