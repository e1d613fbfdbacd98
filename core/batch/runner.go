// Package batch solves many independent scenarios in parallel and reports
// every outcome.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/mesplan/core/logger"
	"github.com/kilianp07/mesplan/core/metrics"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/planner"
	"github.com/kilianp07/mesplan/core/store"
	"github.com/kilianp07/mesplan/internal/eventbus"
)

// ProgressKind tells what a Progress event announces.
type ProgressKind string

const (
	ScenarioStarted  ProgressKind = "started"
	ScenarioFinished ProgressKind = "finished"
	BatchDone        ProgressKind = "done"
)

// Progress is published on the runner's bus while a batch runs.
type Progress struct {
	RunID    string
	Kind     ProgressKind
	Scenario string
	Index    int
	Status   Status
	Done     int
	Total    int
	Time     time.Time
}

// Runner fans scenarios out to a bounded pool of planner calls. Sink,
// Store, Events and Log are optional.
type Runner struct {
	Planner *planner.Planner
	// Workers caps concurrent solves. Zero uses GOMAXPROCS.
	Workers int
	Sink    metrics.MetricsSink
	Store   store.ResultStore
	Events  *eventbus.Bus[Progress]
	Log     logger.Logger
}

// Run solves every scenario and returns one outcome per input, in input
// order. Failures are recorded and do not stop the other scenarios, except
// an unbounded model: it cancels the batch, the scenarios not yet finished
// are marked skipped and the unbounded error is returned with the report.
func (r *Runner) Run(ctx context.Context, cfgs []model.ScenarioConfig) (*Report, error) {
	log := logger.OrNop(r.Log)
	rep := &Report{
		RunID:    uuid.NewString(),
		Outcomes: make([]Outcome, len(cfgs)),
		Started:  time.Now(),
	}
	for i, c := range cfgs {
		rep.Outcomes[i] = Outcome{Index: i, Scenario: c.ID, Status: StatusSkipped}
	}
	log.Infof("batch %s: %d scenarios, %d workers", rep.RunID, len(cfgs), r.workers())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	var done atomic.Int64

	for i := range cfgs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r.publish(Progress{RunID: rep.RunID, Kind: ScenarioStarted, Scenario: cfgs[i].ID, Index: i, Total: len(cfgs), Time: time.Now()})
			out := r.solve(gctx, i, cfgs[i])
			if gctx.Err() != nil && out.Status == StatusTimedOut && !model.Fatal(out.Err) {
				out.Status = StatusSkipped
			}
			rep.Outcomes[i] = out
			n := int(done.Add(1))
			r.publish(Progress{RunID: rep.RunID, Kind: ScenarioFinished, Scenario: out.Scenario, Index: i, Status: out.Status, Done: n, Total: len(cfgs), Time: out.Finished})
			if out.Status != StatusSkipped {
				r.record(gctx, rep.RunID, out, log)
			}
			if model.Fatal(out.Err) {
				log.Errorf("batch %s halted: %v", rep.RunID, out.Err)
				return out.Err
			}
			return nil
		})
	}
	halt := g.Wait()
	rep.Duration = time.Since(rep.Started)

	rep.Halted = halt
	if halt == nil && ctx.Err() != nil {
		rep.Halted = ctx.Err()
	}
	// skipped scenarios are recorded once the pool has drained
	for i := range rep.Outcomes {
		o := &rep.Outcomes[i]
		if o.Status != StatusSkipped {
			continue
		}
		o.Finished = time.Now()
		if rep.Halted != nil {
			o.Err = fmt.Errorf("skipped: %w", rep.Halted)
		}
		r.record(ctx, rep.RunID, *o, log)
	}

	if br, ok := r.sink().(metrics.BatchRecorder); ok {
		if err := br.RecordBatch(rep.BatchEvent()); err != nil {
			log.Warnf("batch %s: record batch metrics: %v", rep.RunID, err)
		}
	}
	ok, failed, skipped := rep.Counts()
	r.publish(Progress{RunID: rep.RunID, Kind: BatchDone, Done: int(done.Load()), Total: len(cfgs), Time: time.Now()})
	log.Infof("batch %s finished in %s: %d solved, %d failed, %d skipped", rep.RunID, rep.Duration.Round(time.Millisecond), ok, failed, skipped)
	return rep, rep.Halted
}

func (r *Runner) solve(ctx context.Context, i int, cfg model.ScenarioConfig) Outcome {
	start := time.Now()
	plan, err := r.Planner.Plan(ctx, cfg)
	out := Outcome{
		Index:    i,
		Scenario: cfg.ID,
		Status:   Classify(err),
		Err:      err,
		Plan:     plan,
		Finished: time.Now(),
	}
	out.Duration = out.Finished.Sub(start)
	if err != nil {
		logger.OrNop(r.Log).Warnf("scenario %s: %s: %v", cfg.ID, out.Status, err)
	}
	return out
}

func (r *Runner) record(ctx context.Context, runID string, o Outcome, log logger.Logger) {
	if err := r.sink().RecordScenarioResult(o.Event(runID)); err != nil {
		log.Warnf("scenario %s: record metrics: %v", o.Scenario, err)
	}
	if r.Store == nil {
		return
	}
	if err := r.Store.Append(context.WithoutCancel(ctx), o.Record(runID)); err != nil {
		log.Warnf("scenario %s: store result: %v", o.Scenario, err)
	}
}

func (r *Runner) publish(p Progress) {
	if r.Events != nil {
		r.Events.Publish(p)
	}
}

func (r *Runner) sink() metrics.MetricsSink {
	if r.Sink == nil {
		return metrics.NopSink{}
	}
	return r.Sink
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}
