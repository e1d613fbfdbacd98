package solver

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram_MIP(t *testing.T) {
	var p Program
	x := p.AddVar("x", 0, math.Inf(1), 1)
	assert.False(t, p.IsMIP())

	n := p.AddIntVar("n", 0, 5, 0)
	assert.True(t, p.IsMIP())
	assert.True(t, p.Vars[n].Integer)
	require.NoError(t, p.Validate())

	assert.InDelta(t, 0.25, p.Violation([]float64{1, 2.25}), 1e-12)
	assert.Equal(t, 0.0, p.Violation([]float64{1, 2}))

	p.AddExclusive(x, n)
	require.NoError(t, p.Validate())
	assert.Equal(t, 1.0, p.Violation([]float64{1, 2}))
	assert.Equal(t, 0.0, p.Violation([]float64{0, 2}))

	y := p.AddVar("y", 1, 2, 0)
	p.AddExclusive(x, y)
	assert.ErrorContains(t, p.Validate(), "zero lower bound")
}

func TestProgram_Relaxation(t *testing.T) {
	var p Program
	x := p.AddIntVar("x", 0, 10, 1)
	y := p.AddVar("y", 0, 10, 1)
	p.AddExclusive(x, y)
	p.AddConstraint("c", []Term{{Var: x, Coef: 1}}, GreaterEq, 1)

	q := p.Relaxation([]float64{2, 0}, []float64{3, 10})
	assert.Equal(t, 2.0, q.Vars[0].Lower)
	assert.Equal(t, 3.0, q.Vars[0].Upper)
	assert.False(t, q.IsMIP())
	assert.True(t, p.IsMIP())
	assert.Equal(t, 0.0, p.Vars[0].Lower, "original bounds are untouched")
	assert.Len(t, q.Constraints, 1)
}

func TestWriteLP_MIPSections(t *testing.T) {
	var p Program
	a := p.AddVar("a", 0, 1, 1)
	b := p.AddVar("b", 0, 1, 1)
	p.AddIntVar("units", 0, 3, 0)
	p.AddExclusive(a, b)

	var buf bytes.Buffer
	require.NoError(t, p.WriteLP(&buf))
	out := buf.String()
	assert.Contains(t, out, "General\n units\n")
	assert.Contains(t, out, "SOS\n excl0: S1:: a:1 b:2\n")
	assert.Contains(t, out, "End\n")
}
