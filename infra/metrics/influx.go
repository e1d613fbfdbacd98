package metrics

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/mesplan/core/metrics"
	"github.com/kilianp07/mesplan/infra/logger"
)

// InfluxSink writes scenario outcomes to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScenarioResult writes one scenario_result point and, for solved
// scenarios, one installed_capacity point per device.
func (s *InfluxSink) RecordScenarioResult(ev coremetrics.ScenarioEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := eventTime(ev.Time)
	p := write.NewPointWithMeasurement("scenario_result").
		AddTag("run_id", ev.RunID).
		AddTag("scenario", ev.Scenario).
		AddTag("status", ev.Status).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000))
	if ev.Err != "" {
		p = p.AddField("error", ev.Err)
	}
	if sum := ev.Summary; sum != nil {
		p = p.AddField("total_cost", round3(sum.TotalCost)).
			AddField("investment_cost", round3(sum.InvestmentCost)).
			AddField("operational_cost", round3(sum.OperationalCost)).
			AddField("shed_mwh", round3(sum.TotalShed())).
			AddField("representative_days", sum.RepresentativeDays)
	}
	if err := s.writeAPI.WritePoint(ctx, p.SetTime(ts)); err != nil {
		return err
	}
	if ev.Summary == nil {
		return nil
	}
	ids := make([]string, 0, len(ev.Summary.Capacity))
	for id := range ev.Summary.Capacity {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cp := write.NewPointWithMeasurement("installed_capacity").
			AddTag("run_id", ev.RunID).
			AddTag("scenario", ev.Scenario).
			AddTag("device", id).
			AddField("capacity", round3(ev.Summary.Capacity[id])).
			SetTime(ts)
		if err := s.writeAPI.WritePoint(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

// RecordBatch writes the totals of a batch run.
func (s *InfluxSink) RecordBatch(ev coremetrics.BatchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("batch_run").
		AddTag("run_id", ev.RunID).
		AddField("scenarios", ev.Scenarios).
		AddField("succeeded", ev.Succeeded).
		AddField("failed", ev.Failed).
		AddField("skipped", ev.Skipped).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(eventTime(ev.Time))
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func eventTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
