package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	corestore "github.com/kilianp07/mesplan/core/store"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS scenario_results (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        scenario TEXT NOT NULL,
        status TEXT NOT NULL,
        ts INTEGER NOT NULL,
        total_cost REAL,
        record TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS scenario_results_run ON scenario_results(run_id);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec corestore.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var cost sql.NullFloat64
	if rec.Summary != nil {
		cost = sql.NullFloat64{Float64: rec.Summary.TotalCost, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenario_results (run_id, scenario, status, ts, total_cost, record) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Scenario, rec.Status, rec.Timestamp.UnixNano(), cost, string(b))
	return err
}

// Query returns records matching q in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, q corestore.Query) ([]corestore.Record, error) {
	var args []any
	query := `SELECT record FROM scenario_results WHERE 1=1`
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, q.Scenario)
	}
	if q.Status != "" {
		query += ` AND status = ?`
		args = append(args, q.Status)
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []corestore.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r corestore.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
