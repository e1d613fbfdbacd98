package planner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/mesplan/core/hub"
	"github.com/kilianp07/mesplan/core/logger"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/results"
	"github.com/kilianp07/mesplan/core/sampler"
	"github.com/kilianp07/mesplan/core/solver"
)

// Plan is everything produced for one scenario. Model and Result are kept
// so callers can derive hourly profiles or dump the program.
type Plan struct {
	Scenario *model.Scenario
	Model    *hub.Model
	Result   solver.Result
	Summary  results.Summary
}

// Planner runs the sample, build, solve and extract pipeline for one
// scenario at a time. It holds no per-scenario state and may be shared
// between goroutines.
type Planner struct {
	Engine solver.Engine
	// Timeout bounds every solve. Zero leaves the deadline to the context
	// and the engine.
	Timeout time.Duration
	Log     logger.Logger
}

// New returns a Planner solving with engine.
func New(engine solver.Engine, timeout time.Duration, log logger.Logger) *Planner {
	return &Planner{Engine: engine, Timeout: timeout, Log: log}
}

// Sample compresses the annual data of cfg into representative days and
// returns the immutable scenario handed to the builder.
func Sample(cfg model.ScenarioConfig) (*model.Scenario, error) {
	if cfg.Data == nil {
		return nil, &model.DataShapeError{Scenario: cfg.ID, Param: "data", Msg: "no annual data"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := sampler.New(cfg.Knobs.Sampler)
	if err != nil {
		return nil, &model.ValidationError{Scenario: cfg.ID, Param: "sampler", Msg: err.Error()}
	}
	hours := cfg.Knobs.Hours()
	days, err := s.Sample(cfg.Data, cfg.Knobs.NumRepresentativeDays, hours)
	if err != nil {
		return nil, model.WithScenario(err, cfg.ID)
	}
	cfg = cfg.Clone()
	return &model.Scenario{
		ID:          cfg.ID,
		Devices:     cfg.Devices,
		Carriers:    cfg.Carriers,
		Knobs:       cfg.Knobs,
		Days:        days,
		HoursPerDay: hours,
		AnnualHours: cfg.Data.Len(),
	}, nil
}

// Plan samples, builds, solves and summarises cfg. Input errors are returned
// before the engine is called. A non-optimal engine status is returned as
// the matching typed error together with the partial plan.
func (p *Planner) Plan(ctx context.Context, cfg model.ScenarioConfig) (*Plan, error) {
	sc, err := Sample(cfg)
	if err != nil {
		return nil, err
	}
	return p.Solve(ctx, sc)
}

// Solve builds and solves an already sampled scenario.
func (p *Planner) Solve(ctx context.Context, sc *model.Scenario) (*Plan, error) {
	log := p.log()
	m, err := hub.Build(sc)
	if err != nil {
		return nil, err
	}
	log.Debugw("model built", map[string]any{
		"scenario":    sc.ID,
		"days":        len(sc.Days),
		"variables":   len(m.Program.Vars),
		"constraints": len(m.Program.Constraints),
	})
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	res, err := p.Engine.Solve(ctx, m.Program)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: solve: %w", sc.ID, err)
	}
	plan := &Plan{Scenario: sc, Model: m, Result: res}
	switch res.Status {
	case solver.StatusOptimal:
	case solver.StatusInfeasible:
		return plan, &model.InfeasibleModelError{Scenario: sc.ID, Param: "bounds"}
	case solver.StatusUnbounded:
		return plan, &model.UnboundedModelError{Scenario: sc.ID, Param: unboundedParam(sc)}
	case solver.StatusTimedOut:
		budget := res.SolveTime
		if p.Timeout > 0 {
			budget = p.Timeout
		}
		return plan, &model.SolverTimeoutError{Scenario: sc.ID, Param: "solver.timeout_seconds", Timeout: budget.Round(time.Millisecond).String()}
	default:
		return plan, fmt.Errorf("scenario %s: unexpected solver status %v", sc.ID, res.Status)
	}
	sum, err := results.Extract(m, res)
	if err != nil {
		return plan, fmt.Errorf("scenario %s: extract: %w", sc.ID, err)
	}
	plan.Summary = sum
	log.Infof("scenario %s solved in %s: total cost %.2f, shed %.3f MWh", sc.ID, res.SolveTime, sum.TotalCost, sum.TotalShed())
	return plan, nil
}

// unboundedParam names the most likely missing bound: an uncapped export
// with a positive export price, else an uncapped device.
func unboundedParam(sc *model.Scenario) string {
	for _, cs := range sc.Carriers {
		if cs.Exportable && cs.ExportLimit <= 0 {
			return "carriers." + cs.ID.String() + ".export_limit"
		}
	}
	for _, d := range sc.Devices {
		if math.IsInf(d.MaxCapacity, 1) {
			return "devices." + d.ID + ".max_capacity"
		}
	}
	return "bounds"
}

func (p *Planner) log() logger.Logger { return logger.OrNop(p.Log) }
