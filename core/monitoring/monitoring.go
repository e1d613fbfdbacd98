// Package monitoring reports failures to an external error tracker. The
// process-wide monitor defaults to a no-op.
package monitoring

import (
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/mesplan/core/metrics"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation. A nil monitor restores the
// no-op.
func Init(m Monitor) {
	mu.Lock()
	defer mu.Unlock()
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	mu.RLock()
	m := current
	mu.RUnlock()
	m.CaptureException(err, tags)
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	mu.RLock()
	m := current
	mu.RUnlock()
	m.Flush(d)
}

// Sink forwards failed scenario outcomes to a Monitor. Solved and skipped
// scenarios are not reported.
type Sink struct {
	mon Monitor
}

// NewSink returns a metrics sink reporting to m.
func NewSink(m Monitor) *Sink { return &Sink{mon: m} }

// RecordScenarioResult captures the error of a failed scenario.
func (s *Sink) RecordScenarioResult(ev metrics.ScenarioEvent) error {
	if ev.Err == "" || ev.Status == "optimal" || ev.Status == "skipped" {
		return nil
	}
	s.mon.CaptureException(errors.New(ev.Err), map[string]string{
		"run_id":   ev.RunID,
		"scenario": ev.Scenario,
		"status":   ev.Status,
	})
	return nil
}

// Close flushes pending reports.
func (s *Sink) Close() { s.mon.Flush(2 * time.Second) }
