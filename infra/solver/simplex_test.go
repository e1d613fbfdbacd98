package solver

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/mesplan/core/factory"
	coresolver "github.com/kilianp07/mesplan/core/solver"
	"github.com/kilianp07/mesplan/infra/logger"
)

func newTestSimplex() *Simplex {
	return &Simplex{Tolerance: DefaultTolerance, Log: logger.NopLogger{}}
}

func TestSimplex_Optimal(t *testing.T) {
	// min 2x + 3y  s.t.  x + y >= 4, 0 <= x <= 3, y >= 0
	var p coresolver.Program
	x := p.AddVar("x", 0, 3, 2)
	y := p.AddVar("y", 0, math.Inf(1), 3)
	p.AddConstraint("demand", []coresolver.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, coresolver.GreaterEq, 4)

	res, err := newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	require.Equal(t, coresolver.StatusOptimal, res.Status)
	assert.InDelta(t, 3, res.Values[x], 1e-9)
	assert.InDelta(t, 1, res.Values[y], 1e-9)
	assert.InDelta(t, 9, res.Objective, 1e-9)
	assert.LessOrEqual(t, p.Violation(res.Values), 1e-9)
}

func TestSimplex_LowerBoundsAndEquality(t *testing.T) {
	// min x + 4y  s.t.  x + 2y = 10, x in [2, 6], y >= 1
	var p coresolver.Program
	x := p.AddVar("x", 2, 6, 1)
	y := p.AddVar("y", 1, math.Inf(1), 4)
	p.AddConstraint("eq", []coresolver.Term{{Var: x, Coef: 1}, {Var: y, Coef: 2}}, coresolver.Equal, 10)

	res, err := newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	require.Equal(t, coresolver.StatusOptimal, res.Status)
	// y costs 4 per unit and replaces 2 units of x costing 2: use x first.
	assert.InDelta(t, 6, res.Values[x], 1e-9)
	assert.InDelta(t, 2, res.Values[y], 1e-9)
	assert.InDelta(t, 14, res.Objective, 1e-9)
}

func TestSimplex_UnusedVariables(t *testing.T) {
	var p coresolver.Program
	x := p.AddVar("x", 0, math.Inf(1), 1)
	free := p.AddVar("idle", 1, math.Inf(1), 5)
	bonus := p.AddVar("bonus", 0, 2, -3)
	p.AddConstraint("min", []coresolver.Term{{Var: x, Coef: 1}}, coresolver.GreaterEq, 1)

	res, err := newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	require.Equal(t, coresolver.StatusOptimal, res.Status)
	assert.InDelta(t, 1, res.Values[x], 1e-9)
	assert.Equal(t, 1.0, res.Values[free], "unused variable sits at its lower bound")
	assert.Equal(t, 2.0, res.Values[bonus], "negative cost pushes it to its upper bound")
	assert.InDelta(t, 1+5-6, res.Objective, 1e-9)
}

func TestSimplex_Infeasible(t *testing.T) {
	var p coresolver.Program
	x := p.AddVar("x", 2, math.Inf(1), 1)
	y := p.AddVar("y", 0, math.Inf(1), 1)
	p.AddConstraint("cap", []coresolver.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, coresolver.LessEq, 1)

	res, err := newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusInfeasible, res.Status)
	assert.False(t, res.HasSolution())
}

func TestSimplex_PresolveInfeasible(t *testing.T) {
	var p coresolver.Program
	x := p.AddVar("x", 0, 1, 1)
	p.AddConstraint("empty", []coresolver.Term{{Var: x, Coef: 0}}, coresolver.Equal, 1)

	res, err := newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusInfeasible, res.Status)
}

func TestSimplex_Unbounded(t *testing.T) {
	// min -x  s.t.  x - y <= 1
	var p coresolver.Program
	x := p.AddVar("x", 0, math.Inf(1), -1)
	y := p.AddVar("y", 0, math.Inf(1), 0)
	p.AddConstraint("gap", []coresolver.Term{{Var: x, Coef: 1}, {Var: y, Coef: -1}}, coresolver.LessEq, 1)

	res, err := newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusUnbounded, res.Status)

	var q coresolver.Program
	q.AddVar("free", 0, math.Inf(1), -1)
	res, err = newTestSimplex().Solve(context.Background(), &q)
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusUnbounded, res.Status)
}

func TestSimplex_InvalidProgram(t *testing.T) {
	var p coresolver.Program
	p.AddVar("x", 2, 1, 0)
	_, err := newTestSimplex().Solve(context.Background(), &p)
	assert.Error(t, err)
}

func stubSolve(t *testing.T, f func(c []float64, A mat.Matrix, b []float64, tol float64, basic []int) (float64, []float64, error)) {
	t.Helper()
	old := simplexSolve
	simplexSolve = f
	t.Cleanup(func() { simplexSolve = old })
}

// smallProgram has standard-form columns x, y and the surplus of "min".
func smallProgram() *coresolver.Program {
	var p coresolver.Program
	x := p.AddVar("x", 0, math.Inf(1), 1)
	y := p.AddVar("y", 0, math.Inf(1), 2)
	p.AddConstraint("min", []coresolver.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, coresolver.GreaterEq, 1)
	return &p
}

func TestSimplex_Timeout(t *testing.T) {
	release := make(chan struct{})
	var wg sync.WaitGroup
	stubSolve(t, func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		defer wg.Done()
		<-release
		return 0, nil, errors.New("late")
	})
	// abandoned solves must return before the stub is restored
	defer wg.Wait()
	defer close(release)

	s := newTestSimplex()
	s.Concurrency = 2
	s.Timeout = 20 * time.Millisecond
	start := time.Now()
	wg.Add(1)
	res, err := s.Solve(context.Background(), smallProgram())
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusTimedOut, res.Status)
	assert.Less(t, time.Since(start), 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	wg.Add(1)
	res, err = s.Solve(ctx, smallProgram())
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusTimedOut, res.Status)
}

func TestSimplex_AbandonedSolveBlocksNext(t *testing.T) {
	release := make(chan struct{})
	var running, peak, calls atomic.Int32
	stubSolve(t, func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if calls.Add(1) == 1 {
			<-release
		}
		return 1, []float64{1, 0, 0}, nil
	})

	s := newTestSimplex()
	s.Concurrency = 1
	s.Timeout = 20 * time.Millisecond
	res, err := s.Solve(context.Background(), smallProgram())
	require.NoError(t, err)
	require.Equal(t, coresolver.StatusTimedOut, res.Status)

	s.Timeout = 0
	done := make(chan coresolver.Result, 1)
	go func() {
		r, _ := s.Solve(context.Background(), smallProgram())
		done <- r
	}()
	select {
	case <-done:
		t.Fatal("second solve finished while the abandoned one still held the slot")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), calls.Load(), "second solve has not started")

	close(release)
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second solve never started")
	}
	assert.Equal(t, coresolver.StatusOptimal, res.Status)
	assert.InDelta(t, 1, res.Values[0], 1e-12)
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, int32(2), calls.Load())
}

func TestSimplex_SolverErrors(t *testing.T) {
	stubSolve(t, func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		return 0, nil, errors.New("boom")
	})
	_, err := newTestSimplex().Solve(context.Background(), smallProgram())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	stubSolve(t, func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		panic("bad shape")
	})
	_, err = newTestSimplex().Solve(context.Background(), smallProgram())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lp panic")
}

func TestSimplex_ConditionWarning(t *testing.T) {
	// x = 1 is feasible, x = y = 0 is not.
	stubSolve(t, func(c []float64, _ mat.Matrix, _ []float64, _ float64, _ []int) (float64, []float64, error) {
		return 1, []float64{1, 0, 0}, mat.Condition(1e16)
	})
	res, err := newTestSimplex().Solve(context.Background(), smallProgram())
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusOptimal, res.Status)
	assert.InDelta(t, 1, res.Values[0], 1e-12)

	stubSolve(t, func([]float64, mat.Matrix, []float64, float64, []int) (float64, []float64, error) {
		return 0, []float64{0, 0, 0}, mat.Condition(1e16)
	})
	_, err = newTestSimplex().Solve(context.Background(), smallProgram())
	assert.Error(t, err)
}

func TestSimplex_Registry(t *testing.T) {
	eng, err := coresolver.New(factory.ModuleConfig{Type: "simplex", Conf: map[string]any{
		"tolerance": 1e-8, "timeout_seconds": 1.5, "max_nodes": 50, "concurrency": 3,
	}})
	require.NoError(t, err)
	s, ok := eng.(*Simplex)
	require.True(t, ok)
	assert.Equal(t, 1e-8, s.Tolerance)
	assert.Equal(t, 1500*time.Millisecond, s.Timeout)
	assert.Equal(t, 50, s.MaxNodes)
	assert.Equal(t, 3, s.Concurrency)
	assert.NotNil(t, s.Log)
	assert.Contains(t, coresolver.Engines(), "simplex")

	eng, err = coresolver.New(factory.ModuleConfig{Type: "simplex"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTolerance, eng.(*Simplex).Tolerance)
}
