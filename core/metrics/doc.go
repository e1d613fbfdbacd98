// Package metrics defines the sink interfaces receiving scenario outcomes
// and batch totals. Implementations live in infra/metrics and register
// themselves by name; NewMetricsSink returns a MultiSink automatically when
// several sinks are configured.
package metrics
