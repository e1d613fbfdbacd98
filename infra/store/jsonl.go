package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	corestore "github.com/kilianp07/mesplan/core/store"
)

// maxLine bounds one JSONL record; summaries of large hubs exceed the
// default scanner buffer.
const maxLine = 4 << 20

// JSONLStore stores records in a JSONL file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates the file and its directory when missing.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

// Append writes rec as one line.
func (s *JSONLStore) Append(ctx context.Context, rec corestore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}

// Query scans the file and returns the matching records.
func (s *JSONLStore) Query(ctx context.Context, q corestore.Query) ([]corestore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scanFiles(ctx, []string{s.path}, q)
}

func (s *JSONLStore) Close() error { return nil }

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// scanFiles reads every file in order. Lines that do not decode are
// skipped.
func scanFiles(ctx context.Context, files []string, q corestore.Query) ([]corestore.Record, error) {
	var res []corestore.Record
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxLine)
		for scanner.Scan() {
			var r corestore.Record
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				continue
			}
			if q.Match(r) {
				res = append(res, r)
			}
		}
		err = scanner.Err()
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
