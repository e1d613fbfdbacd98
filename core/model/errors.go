package model

import (
	"errors"
	"fmt"
)

// DataShapeError reports malformed time series or an impossible day count.
// It is fatal to the scenario and not retried.
type DataShapeError struct {
	Scenario string
	Param    string
	Msg      string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("scenario %s: data shape: %s: %s", orUnknown(e.Scenario), e.Param, e.Msg)
}

// ValidationError reports an out-of-range device, carrier or knob value.
type ValidationError struct {
	Scenario string
	Param    string
	Msg      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scenario %s: invalid %s: %s", orUnknown(e.Scenario), e.Param, e.Msg)
}

// InfeasibleModelError is returned when the engine proves no solution
// exists. The caller may relax penalties or bounds and retry as a new
// scenario.
type InfeasibleModelError struct {
	Scenario string
	Param    string
}

func (e *InfeasibleModelError) Error() string {
	return fmt.Sprintf("scenario %s: model infeasible (check %s)", orUnknown(e.Scenario), e.Param)
}

// UnboundedModelError indicates a missing upper bound in the built model.
type UnboundedModelError struct {
	Scenario string
	Param    string
}

func (e *UnboundedModelError) Error() string {
	return fmt.Sprintf("scenario %s: model unbounded (check %s)", orUnknown(e.Scenario), e.Param)
}

// SolverTimeoutError is returned when the solve exceeded its time budget.
type SolverTimeoutError struct {
	Scenario string
	Param    string
	Timeout  string
}

func (e *SolverTimeoutError) Error() string {
	return fmt.Sprintf("scenario %s: solver timed out after %s (%s)", orUnknown(e.Scenario), e.Timeout, e.Param)
}

// WithScenario stamps the scenario identifier on domain errors that do not
// carry one yet. Other errors are returned unchanged.
func WithScenario(err error, id string) error {
	var ds *DataShapeError
	if errors.As(err, &ds) && ds.Scenario == "" {
		ds.Scenario = id
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Scenario == "" {
		ve.Scenario = id
	}
	return err
}

// Retryable reports whether a new, relaxed scenario may succeed where err
// failed.
func Retryable(err error) bool {
	var inf *InfeasibleModelError
	var to *SolverTimeoutError
	return errors.As(err, &inf) || errors.As(err, &to)
}

// Fatal reports errors that indicate a bug in model construction and must
// halt a batch.
func Fatal(err error) bool {
	var ub *UnboundedModelError
	return errors.As(err, &ub)
}

func orUnknown(s string) string {
	if s == "" {
		return "<unnamed>"
	}
	return s
}
