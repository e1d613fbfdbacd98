// Package store implements the result stores selectable from configuration.
package store

import (
	"fmt"

	corestore "github.com/kilianp07/mesplan/core/store"
)

// Config selects and parameterises the result store.
type Config struct {
	// Backend is one of none, jsonl, jsonl_rotating or sqlite.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "results/runs.db"
		default:
			c.Path = "results/runs.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "none", "jsonl", "jsonl_rotating", "sqlite":
		return nil
	}
	return fmt.Errorf("store: unknown backend %q", c.Backend)
}

// Open creates the configured store.
func Open(c Config) (corestore.ResultStore, error) {
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var (
		s   corestore.ResultStore
		err error
	)
	switch c.Backend {
	case "none":
		return corestore.NopStore{}, nil
	case "jsonl_rotating":
		s, err = NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		if err := ensureDir(c.Path); err != nil {
			return nil, err
		}
		s, err = NewSQLiteStore(c.Path)
	default:
		s, err = NewJSONLStore(c.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store %s: %w", c.Backend, c.Path, err)
	}
	return s, nil
}
