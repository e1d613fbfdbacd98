package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/mesplan/core/factory"
)

// Status is the outcome reported by an Engine.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for _, st := range []Status{StatusOptimal, StatusInfeasible, StatusUnbounded, StatusTimedOut} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// ErrNoSolution is returned when values are requested from a result that is
// not optimal.
var ErrNoSolution = errors.New("solver: no solution available")

// Result is the engine's answer for one Program. Values and Objective are
// only meaningful when Status is StatusOptimal.
type Result struct {
	Status    Status
	Objective float64
	Values    []float64
	SolveTime time.Duration
}

// HasSolution reports whether Values holds an optimal assignment.
func (r Result) HasSolution() bool { return r.Status == StatusOptimal && r.Values != nil }

// Value returns the value of v.
func (r Result) Value(v VarID) (float64, error) {
	if !r.HasSolution() {
		return 0, ErrNoSolution
	}
	return r.Values[v], nil
}

// Engine solves linear programs. Implementations must honour the context
// deadline by returning a StatusTimedOut result rather than blocking.
type Engine interface {
	Solve(ctx context.Context, p *Program) (Result, error)
}

var registry = factory.NewRegistry[Engine]()

// Register adds an engine factory identified by name.
func Register(name string, f factory.Factory[Engine]) error {
	return registry.Register(name, f)
}

// New creates the engine described by cfg.
func New(cfg factory.ModuleConfig) (Engine, error) {
	return registry.Create(cfg)
}

// Engines lists the registered engine names.
func Engines() []string { return registry.Names() }
