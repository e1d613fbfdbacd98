package solver

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WriteLP dumps p in a CPLEX-like LP text format, one constraint per line.
// The output is meant for inspection, not for round-tripping.
func (p *Program) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Minimize")
	fmt.Fprint(bw, " obj:")
	n := 0
	for i, v := range p.Vars {
		if v.Cost == 0 {
			continue
		}
		writeTerm(bw, v.Cost, p.Vars[i].Name, n == 0)
		n++
	}
	if p.Constant != 0 || n == 0 {
		fmt.Fprintf(bw, " + %s", num(p.Constant))
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "Subject To")
	for _, c := range p.Constraints {
		fmt.Fprintf(bw, " %s:", c.Name)
		for j, t := range c.Terms {
			writeTerm(bw, t.Coef, p.Vars[t.Var].Name, j == 0)
		}
		if len(c.Terms) == 0 {
			fmt.Fprint(bw, " 0")
		}
		fmt.Fprintf(bw, " %s %s\n", c.Sense, num(c.RHS))
	}
	fmt.Fprintln(bw, "Bounds")
	for _, v := range p.Vars {
		switch {
		case v.Fixed():
			fmt.Fprintf(bw, " %s = %s\n", v.Name, num(v.Lower))
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " %s >= %s\n", v.Name, num(v.Lower))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", num(v.Lower), v.Name, num(v.Upper))
		}
	}
	var ints []string
	for _, v := range p.Vars {
		if v.Integer {
			ints = append(ints, v.Name)
		}
	}
	if len(ints) > 0 {
		fmt.Fprintln(bw, "General")
		for _, name := range ints {
			fmt.Fprintf(bw, " %s\n", name)
		}
	}
	if len(p.Exclusive) > 0 {
		fmt.Fprintln(bw, "SOS")
		for i, e := range p.Exclusive {
			fmt.Fprintf(bw, " excl%d: S1:: %s:1 %s:2\n", i, p.Vars[e.A].Name, p.Vars[e.B].Name)
		}
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeTerm(w io.Writer, coef float64, name string, first bool) {
	switch {
	case coef < 0:
		fmt.Fprintf(w, " - %s %s", num(-coef), name)
	case first:
		fmt.Fprintf(w, " %s %s", num(coef), name)
	default:
		fmt.Fprintf(w, " + %s %s", num(coef), name)
	}
}

func num(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
