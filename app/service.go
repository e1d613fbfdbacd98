// Package app wires configuration into a ready planning service shared by
// the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/kilianp07/mesplan/api"
	"github.com/kilianp07/mesplan/config"
	"github.com/kilianp07/mesplan/core/batch"
	coremetrics "github.com/kilianp07/mesplan/core/metrics"
	coremon "github.com/kilianp07/mesplan/core/monitoring"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/planner"
	"github.com/kilianp07/mesplan/core/results"
	coresolver "github.com/kilianp07/mesplan/core/solver"
	corestore "github.com/kilianp07/mesplan/core/store"
	"github.com/kilianp07/mesplan/core/sweep"
	"github.com/kilianp07/mesplan/infra/logger"
	"github.com/kilianp07/mesplan/infra/metrics"
	"github.com/kilianp07/mesplan/infra/monitoring"
	"github.com/kilianp07/mesplan/infra/mqtt"
	_ "github.com/kilianp07/mesplan/infra/solver"
	"github.com/kilianp07/mesplan/infra/store"
	"github.com/kilianp07/mesplan/infra/timeseries"
	"github.com/kilianp07/mesplan/internal/eventbus"
	"github.com/kilianp07/mesplan/pkg/export"
)

// Service holds the long-lived planning dependencies.
type Service struct {
	Config *config.Config
	Runner *batch.Runner
	Events *eventbus.Bus[batch.Progress]
	Store  corestore.ResultStore
	Sink   coremetrics.MetricsSink
	log    logger.Logger

	dataOnce sync.Once
	data     *model.AnnualData
	dataErr  error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	logg := logger.New("service")

	engine, err := coresolver.New(cfg.Solver.Module())
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}
	if cfg.Sentry.Enabled() {
		mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
		if err != nil {
			coremetrics.Close(sink)
			return nil, fmt.Errorf("sentry: %w", err)
		}
		coremon.Init(mon)
		sink = coremetrics.NewMultiSink(sink, coremon.NewSink(mon))
	}
	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			coremetrics.Close(sink)
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		sink = coremetrics.NewMultiSink(sink, metrics.NewMQTTSink(client, cfg.MQTT.TopicPrefix))
	}
	st, err := store.Open(cfg.Store)
	if err != nil {
		coremetrics.Close(sink)
		return nil, err
	}

	bus := eventbus.New[batch.Progress](64)
	runner := &batch.Runner{
		Planner: planner.New(engine, cfg.Solver.Timeout(), logger.New("planner")),
		Workers: cfg.Batch.Workers,
		Sink:    sink,
		Store:   st,
		Events:  bus,
		Log:     logger.New("batch"),
	}
	return &Service{Config: cfg, Runner: runner, Events: bus, Store: st, Sink: sink, log: logg}, nil
}

// Data loads the annual series once.
func (s *Service) Data() (*model.AnnualData, error) {
	s.dataOnce.Do(func() {
		start := time.Now()
		s.data, s.dataErr = timeseries.Load(s.Config.Data)
		if s.dataErr == nil {
			s.log.Infof("loaded %d hours of annual data from %s in %s", s.data.Len(), s.Config.Data.Path, time.Since(start).Round(time.Millisecond))
		}
	})
	return s.data, s.dataErr
}

// Run solves cfgs while logging progress, then exports the results.
func (s *Service) Run(ctx context.Context, cfgs []model.ScenarioConfig) (*batch.Report, error) {
	stop := s.watch()
	rep, err := s.Runner.Run(ctx, cfgs)
	stop()
	if xerr := s.Export(rep); xerr != nil {
		err = errors.Join(err, xerr)
	}
	return rep, err
}

// Sweep solves the variants of base along axes and writes
// <name>_sweep_results.csv.
func (s *Service) Sweep(ctx context.Context, name string, base model.ScenarioConfig, axes ...sweep.Axis) ([]sweep.Row, error) {
	stop := s.watch()
	rows, rep, err := sweep.Run(ctx, s.Runner, base, axes...)
	stop()
	if rep == nil {
		return nil, err
	}
	path, xerr := export.SweepFile(s.Config.Output.Dir, name, rows)
	if xerr != nil {
		return rows, errors.Join(err, xerr)
	}
	s.log.Infof("sweep %s: %d variants written to %s", name, len(rows), path)
	return rows, err
}

// Export writes the per-scenario files of every solved outcome and the
// batch summary table.
func (s *Service) Export(rep *batch.Report) error {
	if rep == nil {
		return nil
	}
	dir := s.Config.Output.Dir
	var errs []error
	for _, o := range rep.Outcomes {
		sum := o.Summary()
		if sum == nil {
			continue
		}
		var ps []results.HourProfile
		if s.Config.Output.Profiles {
			var err error
			if ps, err = results.Profiles(o.Plan.Model, o.Plan.Result); err != nil {
				errs = append(errs, fmt.Errorf("scenario %s profiles: %w", o.Scenario, err))
			}
		}
		if _, err := export.ScenarioFiles(dir, *sum, ps); err != nil {
			errs = append(errs, err)
		}
	}
	sums := rep.Summaries()
	if len(sums) > 0 {
		path, err := export.WriteFile(dir, "summary_"+rep.RunID+".csv", func(w io.Writer) error {
			return export.WriteSummaryCSV(w, sums)
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			s.log.Infof("batch %s: summary written to %s", rep.RunID, filepath.Clean(path))
		}
	}
	return errors.Join(errs...)
}

// Serve runs the HTTP API, and the Prometheus endpoint when configured on a
// separate address, until ctx is canceled. A data load failure leaves the
// solve route disabled.
func (s *Service) Serve(ctx context.Context) error {
	data, err := s.Data()
	if err != nil {
		s.log.Warnf("annual data unavailable, /api/v1/solve disabled: %v", err)
		data = nil
	}
	srv := &api.Server{
		Runner:       s.Runner,
		Data:         data,
		Store:        s.Store,
		Log:          logger.New("api"),
		Token:        s.Config.API.Token,
		MaxBodyBytes: s.Config.API.MaxBodyBytes,
	}
	if addr := s.Config.Metrics.PrometheusAddr; addr != "" && addr != s.Config.API.Addr {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return api.ListenAndServe(ctx, s.Config.API.Addr, srv.Handler(s.Config.API.CORSOrigins), logger.New("api"))
}

// watch logs batch progress until the returned function is called.
func (s *Service) watch() func() {
	sub := s.Events.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range sub {
			switch p.Kind {
			case batch.ScenarioFinished:
				s.log.Infof("[%d/%d] %s: %s", p.Done, p.Total, p.Scenario, p.Status)
			case batch.BatchDone:
				return
			}
		}
	}()
	return func() {
		s.Events.Unsubscribe(sub)
		<-done
	}
}

// Close releases the store and the metrics connections.
func (s *Service) Close() error {
	s.Events.Close()
	coremetrics.Close(s.Sink)
	return s.Store.Close()
}
