package metrics

import (
	"errors"
	"sort"

	coremetrics "github.com/kilianp07/mesplan/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes scenario outcomes as Prometheus metrics.
type PromSink struct {
	scenarios *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	cost      *prometheus.GaugeVec
	shed      *prometheus.GaugeVec
	capacity  *prometheus.GaugeVec
	batches   prometheus.Counter
	batchDur  prometheus.Gauge
}

var solveBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}

// NewPromSink registers the planner metrics on the default registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.scenarios, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mesplan_scenarios_total",
		Help: "Scenarios processed, by outcome",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mesplan_scenario_duration_seconds",
		Help:    "Wall time from sampling to extraction per scenario",
		Buckets: solveBuckets,
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mesplan_scenario_total_cost",
		Help: "Annualised total cost of the last solved run of a scenario",
	}, []string{"scenario"})); err != nil {
		return nil, err
	}
	if s.shed, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mesplan_scenario_shed_mwh",
		Help: "Annual shed energy of the last solved run of a scenario",
	}, []string{"scenario"})); err != nil {
		return nil, err
	}
	if s.capacity, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mesplan_installed_capacity",
		Help: "Installed capacity per scenario and device",
	}, []string{"scenario", "device"})); err != nil {
		return nil, err
	}
	if s.batches, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mesplan_batches_total",
		Help: "Completed batch runs",
	})); err != nil {
		return nil, err
	}
	if s.batchDur, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mesplan_last_batch_duration_seconds",
		Help: "Wall time of the most recent batch run",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordScenarioResult counts the outcome and, for solved scenarios,
// updates the cost, shed and capacity gauges.
func (s *PromSink) RecordScenarioResult(ev coremetrics.ScenarioEvent) error {
	s.scenarios.WithLabelValues(ev.Status).Inc()
	s.duration.WithLabelValues(ev.Status).Observe(ev.Duration.Seconds())
	if ev.Summary == nil {
		return nil
	}
	sum := ev.Summary
	s.cost.WithLabelValues(ev.Scenario).Set(sum.TotalCost)
	s.shed.WithLabelValues(ev.Scenario).Set(sum.TotalShed())
	ids := make([]string, 0, len(sum.Capacity))
	for id := range sum.Capacity {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.capacity.WithLabelValues(ev.Scenario, id).Set(sum.Capacity[id])
	}
	return nil
}

// RecordBatch counts the batch and stores its duration.
func (s *PromSink) RecordBatch(ev coremetrics.BatchEvent) error {
	s.batches.Inc()
	s.batchDur.Set(ev.Duration.Seconds())
	return nil
}
