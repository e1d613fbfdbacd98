package metrics

import (
	"encoding/json"
	"strings"

	coremetrics "github.com/kilianp07/mesplan/core/metrics"
	coremqtt "github.com/kilianp07/mesplan/core/mqtt"
)

// MQTTSink broadcasts scenario outcomes as JSON. Scenario events go to
// <prefix>/<run>/<scenario> and batch totals to <prefix>/<run>/batch.
type MQTTSink struct {
	pub    coremqtt.Publisher
	prefix string
}

// NewMQTTSink creates a sink publishing under prefix.
func NewMQTTSink(pub coremqtt.Publisher, prefix string) *MQTTSink {
	return &MQTTSink{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

// RecordScenarioResult publishes the event including its summary.
func (s *MQTTSink) RecordScenarioResult(ev coremetrics.ScenarioEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.topic(ev.RunID, ev.Scenario), payload)
}

// RecordBatch publishes the batch totals.
func (s *MQTTSink) RecordBatch(ev coremetrics.BatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.topic(ev.RunID, "batch"), payload)
}

func (s *MQTTSink) topic(run, leaf string) string {
	if run == "" {
		run = "adhoc"
	}
	return s.prefix + "/" + run + "/" + leaf
}

// Close disconnects the publisher when it holds a connection.
func (s *MQTTSink) Close() {
	if d, ok := s.pub.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
}
