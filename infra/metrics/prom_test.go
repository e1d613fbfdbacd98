package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/mesplan/core/metrics"
	"github.com/kilianp07/mesplan/core/model"
	"github.com/kilianp07/mesplan/core/results"
)

func solvedEvent() coremetrics.ScenarioEvent {
	return coremetrics.ScenarioEvent{
		RunID:    "run-1",
		Scenario: "base",
		Status:   "optimal",
		Summary: &results.Summary{
			Scenario:  "base",
			TotalCost: 1234.5,
			Capacity:  map[string]float64{"hp": 3.5, "gb": 0},
			Shed:      map[model.Carrier]float64{model.Heat: 2, model.Cool: 0.5},
		},
		Duration: 1500 * time.Millisecond,
		Time:     time.Unix(1700000000, 0),
	}
}

func TestPromSink_RecordScenarioResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := sink.RecordScenarioResult(solvedEvent()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := sink.RecordScenarioResult(coremetrics.ScenarioEvent{Scenario: "bad", Status: "infeasible", Err: "x"}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	if got := testutil.ToFloat64(sink.scenarios.WithLabelValues("optimal")); got != 1 {
		t.Errorf("optimal count = %v", got)
	}
	if got := testutil.ToFloat64(sink.scenarios.WithLabelValues("infeasible")); got != 1 {
		t.Errorf("infeasible count = %v", got)
	}
	if got := testutil.ToFloat64(sink.cost.WithLabelValues("base")); got != 1234.5 {
		t.Errorf("cost gauge = %v", got)
	}
	if got := testutil.ToFloat64(sink.shed.WithLabelValues("base")); got != 2.5 {
		t.Errorf("shed gauge = %v", got)
	}
	if got := testutil.ToFloat64(sink.capacity.WithLabelValues("base", "hp")); got != 3.5 {
		t.Errorf("capacity gauge = %v", got)
	}
	if n := testutil.CollectAndCount(sink.capacity); n != 2 {
		t.Errorf("capacity series = %d, want 2", n)
	}
	if n := testutil.CollectAndCount(sink.cost); n != 1 {
		t.Errorf("failed scenarios must not set cost, got %d series", n)
	}
}

func TestPromSink_RecordBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	_ = sink.RecordBatch(coremetrics.BatchEvent{RunID: "r", Duration: 2 * time.Second})
	_ = sink.RecordBatch(coremetrics.BatchEvent{RunID: "r2", Duration: 3 * time.Second})
	if got := testutil.ToFloat64(sink.batches); got != 2 {
		t.Errorf("batches = %v", got)
	}
	if got := testutil.ToFloat64(sink.batchDur); got != 3 {
		t.Errorf("last duration = %v", got)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = a.RecordScenarioResult(solvedEvent())
	_ = b.RecordScenarioResult(solvedEvent())
	if got := testutil.ToFloat64(a.scenarios.WithLabelValues("optimal")); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}
