package metrics

import (
	"github.com/kilianp07/mesplan/core/factory"
	coremetrics "github.com/kilianp07/mesplan/core/metrics"
	"github.com/kilianp07/mesplan/infra/mqtt"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		s, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		c.SetDefaults()
		cli, err := mqtt.NewPahoClient(c)
		if err != nil {
			return nil, err
		}
		return NewMQTTSink(cli, c.TopicPrefix), nil
	})
}
