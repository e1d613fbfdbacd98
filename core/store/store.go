// Package store defines the persistence contract for scenario outcomes.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/mesplan/core/results"
)

// Record is one persisted scenario outcome of a run.
type Record struct {
	RunID     string           `json:"run_id"`
	Scenario  string           `json:"scenario"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Summary   *results.Summary `json:"summary,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Timestamp time.Time        `json:"timestamp"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	RunID    string
	Scenario string
	Status   string
	Start    time.Time
	End      time.Time
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Scenario != "" && r.Scenario != q.Scenario {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return true
}

// ResultStore persists Records and supports querying. Query returns records
// in insertion order.
type ResultStore interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
