package metrics

import (
	"time"

	"github.com/kilianp07/mesplan/core/results"
)

// ScenarioEvent is emitted once per scenario of a run, whatever its outcome.
type ScenarioEvent struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	// Status is the outcome label: optimal, infeasible, unbounded,
	// timed_out, error or skipped.
	Status   string           `json:"status"`
	Err      string           `json:"error,omitempty"`
	Summary  *results.Summary `json:"summary,omitempty"`
	Duration time.Duration    `json:"duration"`
	Time     time.Time        `json:"time"`
}

// MetricsSink records scenario outcomes for observability purposes.
type MetricsSink interface {
	RecordScenarioResult(ev ScenarioEvent) error
}

// BatchEvent summarises a finished batch run.
type BatchEvent struct {
	RunID     string        `json:"run_id"`
	Scenarios int           `json:"scenarios"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Time      time.Time     `json:"time"`
}

// BatchRecorder is implemented by sinks able to record batch totals.
type BatchRecorder interface {
	RecordBatch(ev BatchEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordScenarioResult(ScenarioEvent) error { return nil }
func (NopSink) RecordBatch(BatchEvent) error             { return nil }
