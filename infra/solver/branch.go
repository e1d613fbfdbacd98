package solver

import (
	"context"
	"errors"
	"math"

	coresolver "github.com/kilianp07/mesplan/core/solver"
	"github.com/kilianp07/mesplan/infra/logger"
)

const (
	// DefaultMaxNodes bounds the branch-and-bound tree when none is
	// configured.
	DefaultMaxNodes = 20000
	// IntegralityTolerance is the distance to the nearest integer below
	// which a relaxed value counts as integral.
	IntegralityTolerance = 1e-6
	// ExclusiveTolerance is the value below which a member of an exclusive
	// pair counts as zero.
	ExclusiveTolerance = 1e-7
)

// ErrNodeLimit is returned when branch-and-bound exhausts its node budget
// before finding any integer-feasible solution.
var ErrNodeLimit = errors.New("branch and bound: node limit reached without a feasible solution")

// relaxFunc solves the continuous relaxation of a program.
type relaxFunc func(ctx context.Context, p *coresolver.Program) (coresolver.Result, error)

type bbNode struct {
	lower, upper []float64
	// bound is the relaxation objective of the parent.
	bound float64
}

// branchAndBound solves p depth-first, branching on fractional integer
// variables first and on violated exclusive pairs second. When the node
// budget runs out the best solution found so far is returned.
func branchAndBound(ctx context.Context, p *coresolver.Program, relax relaxFunc, maxNodes int, log logger.Logger) (coresolver.Result, error) {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	root := bbNode{lower: make([]float64, len(p.Vars)), upper: make([]float64, len(p.Vars)), bound: math.Inf(-1)}
	for i, v := range p.Vars {
		root.lower[i], root.upper[i] = v.Lower, v.Upper
		if v.Integer {
			root.lower[i] = math.Ceil(v.Lower - IntegralityTolerance)
			root.upper[i] = math.Floor(v.Upper + IntegralityTolerance)
			if root.lower[i] > root.upper[i] {
				return coresolver.Result{Status: coresolver.StatusInfeasible}, nil
			}
		}
	}

	var best []float64
	bestObj := math.Inf(1)
	stack := []bbNode{root}
	nodes := 0
	prune := func(obj float64) bool {
		return best != nil && obj >= bestObj-1e-9*math.Max(1, math.Abs(bestObj))
	}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			log.Warnf("branch and bound stopped after %d nodes: %v", nodes, err)
			return coresolver.Result{Status: coresolver.StatusTimedOut}, nil
		}
		if nodes >= maxNodes {
			if best == nil {
				return coresolver.Result{}, ErrNodeLimit
			}
			log.Warnf("branch and bound hit the %d node limit, keeping the best solution found", maxNodes)
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if prune(node.bound) {
			continue
		}
		nodes++

		res, err := relax(ctx, p.Relaxation(node.lower, node.upper))
		if err != nil {
			return coresolver.Result{}, err
		}
		switch res.Status {
		case coresolver.StatusOptimal:
		case coresolver.StatusInfeasible:
			continue
		default:
			return coresolver.Result{Status: res.Status}, nil
		}
		if prune(res.Objective) {
			continue
		}

		x := res.Values
		if i := fractional(p, x); i >= 0 {
			down, up := node.child(res.Objective), node.child(res.Objective)
			down.upper[i] = math.Floor(x[i])
			up.lower[i] = math.Ceil(x[i])
			// explore the nearer rounding first
			if x[i]-math.Floor(x[i]) < 0.5 {
				stack = append(stack, up, down)
			} else {
				stack = append(stack, down, up)
			}
			continue
		}
		if e, ok := violatedPair(p, x); ok {
			keepA, keepB := node.child(res.Objective), node.child(res.Objective)
			keepA.upper[e.B] = 0
			keepB.upper[e.A] = 0
			if x[e.A] >= x[e.B] {
				stack = append(stack, keepB, keepA)
			} else {
				stack = append(stack, keepA, keepB)
			}
			continue
		}
		best, bestObj = x, res.Objective
	}
	if best == nil {
		return coresolver.Result{Status: coresolver.StatusInfeasible}, nil
	}
	log.Debugf("branch and bound explored %d nodes", nodes)
	return coresolver.Result{Status: coresolver.StatusOptimal, Objective: p.Objective(best), Values: best}, nil
}

func (n bbNode) child(bound float64) bbNode {
	return bbNode{
		lower: append([]float64(nil), n.lower...),
		upper: append([]float64(nil), n.upper...),
		bound: bound,
	}
}

// fractional returns the integer variable furthest from integrality, or -1.
func fractional(p *coresolver.Program, x []float64) int {
	pick, worst := -1, IntegralityTolerance
	for i, v := range p.Vars {
		if !v.Integer {
			continue
		}
		if d := math.Abs(x[i] - math.Round(x[i])); d > worst {
			pick, worst = i, d
		}
	}
	return pick
}

// violatedPair returns the exclusive pair whose smaller member is largest.
func violatedPair(p *coresolver.Program, x []float64) (coresolver.Pair, bool) {
	var pick coresolver.Pair
	worst, found := ExclusiveTolerance, false
	for _, e := range p.Exclusive {
		if m := math.Min(x[e.A], x[e.B]); m > worst {
			pick, worst, found = e, m, true
		}
	}
	return pick, found
}
