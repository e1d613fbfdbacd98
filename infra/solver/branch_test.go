package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coresolver "github.com/kilianp07/mesplan/core/solver"
	"github.com/kilianp07/mesplan/infra/logger"
)

func knapsack() (*coresolver.Program, coresolver.VarID, coresolver.VarID) {
	var p coresolver.Program
	a := p.AddIntVar("a", 0, 10, -5)
	b := p.AddIntVar("b", 0, 10, -4)
	p.AddConstraint("weight", []coresolver.Term{{Var: a, Coef: 6}, {Var: b, Coef: 4}}, coresolver.LessEq, 24)
	p.AddConstraint("volume", []coresolver.Term{{Var: a, Coef: 1}, {Var: b, Coef: 2}}, coresolver.LessEq, 6)
	return &p, a, b
}

func TestBranchAndBound_Integer(t *testing.T) {
	p, a, b := knapsack()
	for name, eng := range map[string]coresolver.Engine{"simplex": newTestSimplex(), "ipm": newTestIPM()} {
		t.Run(name, func(t *testing.T) {
			res, err := eng.Solve(context.Background(), p)
			require.NoError(t, err)
			require.Equal(t, coresolver.StatusOptimal, res.Status)
			assert.InDelta(t, 4, res.Values[a], 1e-6)
			assert.InDelta(t, 0, res.Values[b], 1e-6)
			assert.InDelta(t, -20, res.Objective, 1e-6)
		})
	}
}

func TestBranchAndBound_Exclusive(t *testing.T) {
	var p coresolver.Program
	x := p.AddVar("x", 0, 3, -2)
	y := p.AddVar("y", 0, 3, -1)
	p.AddConstraint("total", []coresolver.Term{{Var: x, Coef: 1}, {Var: y, Coef: 1}}, coresolver.LessEq, 4)

	res, err := newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	require.Equal(t, coresolver.StatusOptimal, res.Status)
	assert.InDelta(t, -7, res.Objective, 1e-9, "both run without the pair")

	p.AddExclusive(x, y)
	res, err = newTestSimplex().Solve(context.Background(), &p)
	require.NoError(t, err)
	require.Equal(t, coresolver.StatusOptimal, res.Status)
	assert.InDelta(t, 3, res.Values[x], 1e-9)
	assert.InDelta(t, 0, res.Values[y], 1e-9)
	assert.InDelta(t, -6, res.Objective, 1e-9)
}

func TestBranchAndBound_Limits(t *testing.T) {
	p, _, _ := knapsack()
	s := newTestSimplex()
	s.MaxNodes = 1
	_, err := s.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrNodeLimit)

	var q coresolver.Program
	n := q.AddIntVar("n", 0.2, 0.8, 1)
	q.AddConstraint("floor", []coresolver.Term{{Var: n, Coef: 1}}, coresolver.GreaterEq, 0.1)
	res, err := newTestSimplex().Solve(context.Background(), &q)
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusInfeasible, res.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err = branchAndBound(ctx, p, newTestSimplex().solveLP, 0, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, coresolver.StatusTimedOut, res.Status)
}
