package metrics

import "errors"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScenarioResult forwards the event to every sink. A failing sink does
// not stop delivery to the others; all errors are joined.
func (m *MultiSink) RecordScenarioResult(ev ScenarioEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordScenarioResult(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordBatch forwards batch totals to the sinks supporting them.
func (m *MultiSink) RecordBatch(ev BatchEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if br, ok := s.(BatchRecorder); ok {
			if err := br.RecordBatch(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close releases every sink holding a connection, including the members of
// a MultiSink.
func Close(s MetricsSink) {
	switch v := s.(type) {
	case *MultiSink:
		for _, inner := range v.Sinks {
			Close(inner)
		}
	case interface{ Close() }:
		v.Close()
	}
}
