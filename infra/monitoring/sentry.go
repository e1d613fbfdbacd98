package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	coremon "github.com/kilianp07/mesplan/core/monitoring"
)

// Config defines settings for Sentry error monitoring. An empty DSN
// disables reporting.
type Config struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}

// Enabled reports whether a DSN is configured.
func (c Config) Enabled() bool { return c.DSN != "" }

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation.
func NewSentryMonitor(cfg Config) (coremon.Monitor, error) {
	if !cfg.Enabled() {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{}, nil
}

type sentryMonitor struct{}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		sentry.CaptureException(err)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
