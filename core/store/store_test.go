package store

import (
	"testing"
	"time"
)

func TestQueryMatch(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	r := Record{RunID: "r1", Scenario: "base", Status: "optimal", Timestamp: now}
	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty", Query{}, true},
		{"run", Query{RunID: "r1"}, true},
		{"other run", Query{RunID: "r2"}, false},
		{"scenario", Query{Scenario: "base"}, true},
		{"status", Query{Status: "infeasible"}, false},
		{"window", Query{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}, true},
		{"before start", Query{Start: now.Add(time.Minute)}, false},
		{"after end", Query{End: now.Add(-time.Minute)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.Match(r); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}
