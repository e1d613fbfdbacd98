package solver

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// refineSteps is the number of iterative refinement passes on each normal
// equation solve.
const refineSteps = 2

// normalSolver factors M = A·Θ·Aᵀ. Columns with many entries are kept out
// of the block factorisation and folded back in with the Woodbury identity;
// the remaining rows split into independent blocks.
type normalSolver struct {
	m      int
	cols   [][]ipmEntry
	theta  []float64
	dense  []int
	blocks []*normalBlock
	// local maps every row to its index inside its block.
	local []int
	owner []int

	// sinvC holds S⁻¹·a_k for every dense column k, S being the block
	// diagonal part.
	sinvC [][]float64
	capK  mat.Cholesky
}

type normalBlock struct {
	rows []int
	cols []int
	data []float64
	chol mat.Cholesky
}

func newNormalSolver(m int, cols [][]ipmEntry) *normalSolver {
	ns := &normalSolver{m: m, cols: cols, local: make([]int, m), owner: make([]int, m)}
	threshold := int(math.Max(16, 2*math.Sqrt(float64(m))))
	isDense := make([]bool, len(cols))
	for j, col := range cols {
		isDense[j] = len(col) > threshold
	}
	// every row needs a sparse entry or S is singular
	covered := make([]bool, m)
	for j, col := range cols {
		if isDense[j] {
			continue
		}
		for _, e := range col {
			covered[e.row] = true
		}
	}
	for j, col := range cols {
		if !isDense[j] {
			continue
		}
		for _, e := range col {
			if !covered[e.row] {
				isDense[j] = false
				break
			}
		}
		if !isDense[j] {
			for _, e := range col {
				covered[e.row] = true
			}
		}
	}

	parent := make([]int, m)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for j, col := range cols {
		if isDense[j] {
			ns.dense = append(ns.dense, j)
			continue
		}
		for k := 1; k < len(col); k++ {
			a, b := find(col[0].row), find(col[k].row)
			if a != b {
				parent[b] = a
			}
		}
	}
	index := map[int]int{}
	for i := 0; i < m; i++ {
		root := find(i)
		bi, ok := index[root]
		if !ok {
			bi = len(ns.blocks)
			index[root] = bi
			ns.blocks = append(ns.blocks, &normalBlock{})
		}
		blk := ns.blocks[bi]
		ns.owner[i] = bi
		ns.local[i] = len(blk.rows)
		blk.rows = append(blk.rows, i)
	}
	for j, col := range cols {
		if !isDense[j] && len(col) > 0 {
			blk := ns.blocks[ns.owner[col[0].row]]
			blk.cols = append(blk.cols, j)
		}
	}
	return ns
}

// factor computes the block Cholesky factors and the Woodbury capacitance
// matrix for the scaling theta.
func (ns *normalSolver) factor(theta []float64) error {
	ns.theta = theta
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, blk := range ns.blocks {
		g.Go(func() error { return blk.factor(ns.cols, theta, ns.local) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(ns.dense) == 0 {
		return nil
	}

	k := len(ns.dense)
	if len(ns.sinvC) != k {
		ns.sinvC = make([][]float64, k)
		for i := range ns.sinvC {
			ns.sinvC[i] = make([]float64, ns.m)
		}
	}
	col := make([]float64, ns.m)
	for p, j := range ns.dense {
		for i := range col {
			col[i] = 0
		}
		for _, e := range ns.cols[j] {
			col[e.row] = e.val
		}
		if err := ns.solveBlocks(ns.sinvC[p], col); err != nil {
			return err
		}
	}
	capacitance := make([]float64, k*k)
	for p, jp := range ns.dense {
		for q := p; q < k; q++ {
			var v float64
			for _, e := range ns.cols[jp] {
				v += e.val * ns.sinvC[q][e.row]
			}
			if p == q {
				v += 1 / theta[jp]
			}
			capacitance[p*k+q] = v
		}
	}
	if !factorRegularized(&ns.capK, k, capacitance) {
		return errors.New("ipm: dense column system is not positive definite")
	}
	return nil
}

func (blk *normalBlock) factor(cols [][]ipmEntry, theta []float64, local []int) error {
	n := len(blk.rows)
	if cap(blk.data) < n*n {
		blk.data = make([]float64, n*n)
	}
	blk.data = blk.data[:n*n]
	for i := range blk.data {
		blk.data[i] = 0
	}
	for _, j := range blk.cols {
		col := cols[j]
		for p, ep := range col {
			tp := theta[j] * ep.val
			lp := local[ep.row]
			for _, eq := range col[p:] {
				a, b := lp, local[eq.row]
				if a > b {
					a, b = b, a
				}
				blk.data[a*n+b] += tp * eq.val
			}
		}
	}
	if !factorRegularized(&blk.chol, n, blk.data) {
		return fmt.Errorf("ipm: normal block of %d rows is not positive definite", n)
	}
	return nil
}

// factorRegularized factors the symmetric matrix whose upper triangle is
// data, adding a growing multiple of the identity until Cholesky succeeds.
func factorRegularized(chol *mat.Cholesky, n int, data []float64) bool {
	var maxDiag float64
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, data[i*n+i])
	}
	base := math.Max(1, maxDiag)
	for _, rel := range []float64{1e-14, 1e-12, 1e-10, 1e-8, 1e-6} {
		sym := mat.NewSymDense(n, append([]float64(nil), data...))
		for i := 0; i < n; i++ {
			sym.SetSym(i, i, data[i*n+i]+rel*base)
		}
		if chol.Factorize(sym) {
			return true
		}
	}
	return false
}

// solveBlocks solves S·x = r block by block.
func (ns *normalSolver) solveBlocks(x, r []float64) error {
	for _, blk := range ns.blocks {
		n := len(blk.rows)
		rv := mat.NewVecDense(n, nil)
		for i, row := range blk.rows {
			rv.SetVec(i, r[row])
		}
		var out mat.VecDense
		if err := blk.chol.SolveVecTo(&out, rv); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return err
			}
		}
		for i, row := range blk.rows {
			x[row] = out.AtVec(i)
		}
	}
	return nil
}

// solveOnce applies the factored inverse of M to r.
func (ns *normalSolver) solveOnce(x, r []float64) error {
	if err := ns.solveBlocks(x, r); err != nil {
		return err
	}
	k := len(ns.dense)
	if k == 0 {
		return nil
	}
	q := mat.NewVecDense(k, nil)
	for p, j := range ns.dense {
		var s float64
		for _, e := range ns.cols[j] {
			s += e.val * x[e.row]
		}
		q.SetVec(p, s)
	}
	var t mat.VecDense
	if err := ns.capK.SolveVecTo(&t, q); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return err
		}
	}
	for p := 0; p < k; p++ {
		tp := t.AtVec(p)
		for i, u := range ns.sinvC[p] {
			x[i] -= u * tp
		}
	}
	return nil
}

// solve returns M⁻¹·r in x, refined against the exact product A·Θ·Aᵀ.
func (ns *normalSolver) solve(x, r []float64) error {
	if err := ns.solveOnce(x, r); err != nil {
		return err
	}
	res := make([]float64, ns.m)
	corr := make([]float64, ns.m)
	for step := 0; step < refineSteps; step++ {
		ns.mulM(res, x)
		for i := range res {
			res[i] = r[i] - res[i]
		}
		if err := ns.solveOnce(corr, res); err != nil {
			return err
		}
		for i := range x {
			x[i] += corr[i]
		}
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("ipm: non-finite normal equation solution")
		}
	}
	return nil
}

// mulM computes A·Θ·Aᵀ·v into dst.
func (ns *normalSolver) mulM(dst, v []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for j, col := range ns.cols {
		var s float64
		for _, e := range col {
			s += e.val * v[e.row]
		}
		s *= ns.theta[j]
		for _, e := range col {
			dst[e.row] += e.val * s
		}
	}
}
