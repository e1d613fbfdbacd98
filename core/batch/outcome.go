package batch

import (
	"errors"
	"time"

	"github.com/kilianp07/mesplan/core/metrics"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/planner"
	"github.com/kilianp07/mesplan/core/results"
	"github.com/kilianp07/mesplan/core/store"
)

// Status labels the outcome of one scenario.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusTimedOut   Status = "timed_out"
	StatusError      Status = "error"
	StatusSkipped    Status = "skipped"
)

// Classify maps a planner error onto an outcome status.
func Classify(err error) Status {
	var (
		inf *model.InfeasibleModelError
		unb *model.UnboundedModelError
		tmo *model.SolverTimeoutError
	)
	switch {
	case err == nil:
		return StatusOptimal
	case errors.As(err, &inf):
		return StatusInfeasible
	case errors.As(err, &unb):
		return StatusUnbounded
	case errors.As(err, &tmo):
		return StatusTimedOut
	}
	return StatusError
}

// Outcome is the result of one scenario of a batch. Plan is set whenever
// the engine was reached, even for non-optimal statuses.
type Outcome struct {
	Index    int
	Scenario string
	Status   Status
	Err      error
	Plan     *planner.Plan
	Duration time.Duration
	Finished time.Time
}

// OK reports whether the scenario was solved to optimality.
func (o Outcome) OK() bool { return o.Status == StatusOptimal && o.Err == nil }

// Summary returns the extracted summary of a solved scenario.
func (o Outcome) Summary() *results.Summary {
	if !o.OK() || o.Plan == nil {
		return nil
	}
	s := o.Plan.Summary
	return &s
}

func (o Outcome) errString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Event converts the outcome for metrics sinks.
func (o Outcome) Event(runID string) metrics.ScenarioEvent {
	return metrics.ScenarioEvent{
		RunID:    runID,
		Scenario: o.Scenario,
		Status:   string(o.Status),
		Err:      o.errString(),
		Summary:  o.Summary(),
		Duration: o.Duration,
		Time:     o.Finished,
	}
}

// Record converts the outcome for the result store.
func (o Outcome) Record(runID string) store.Record {
	return store.Record{
		RunID:     runID,
		Scenario:  o.Scenario,
		Status:    string(o.Status),
		Error:     o.errString(),
		Summary:   o.Summary(),
		Duration:  o.Duration,
		Timestamp: o.Finished,
	}
}

// Report collects every outcome of a run in input order.
type Report struct {
	RunID    string
	Outcomes []Outcome
	Started  time.Time
	Duration time.Duration
	// Halted is the error that stopped the batch early, if any.
	Halted error
}

// Counts returns the number of solved, failed and skipped scenarios.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch {
		case o.OK():
			succeeded++
		case o.Status == StatusSkipped:
			skipped++
		default:
			failed++
		}
	}
	return
}

// Summaries returns the summaries of solved scenarios in input order.
func (r *Report) Summaries() []results.Summary {
	var out []results.Summary
	for _, o := range r.Outcomes {
		if s := o.Summary(); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Err joins the errors of every failed scenario.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil && o.Status != StatusSkipped {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// BatchEvent converts the report totals for metrics sinks.
func (r *Report) BatchEvent() metrics.BatchEvent {
	ok, failed, skipped := r.Counts()
	return metrics.BatchEvent{
		RunID:     r.RunID,
		Scenarios: len(r.Outcomes),
		Succeeded: ok,
		Failed:    failed,
		Skipped:   skipped,
		Duration:  r.Duration,
		Time:      r.Started.Add(r.Duration),
	}
}
