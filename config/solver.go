package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/kilianp07/mesplan/core/factory"
)

// SolverConfig selects the engine. "ipm" handles full-size models,
// "simplex" is kept for small ones.
type SolverConfig struct {
	Type string `json:"type"`
	// TimeoutSeconds bounds every solve. Zero disables the limit.
	TimeoutSeconds float64 `json:"timeout_seconds"`
	Tolerance      float64 `json:"tolerance"`
	// MaxNodes bounds branch-and-bound on models with unit sizing or
	// exclusive storage. Zero uses the engine default.
	MaxNodes int `json:"max_nodes"`
}

func (c *SolverConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ipm"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 300
	}
}

func (c SolverConfig) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("solver.timeout_seconds must be >= 0")
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("solver.tolerance must be >= 0")
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("solver.max_nodes must be >= 0")
	}
	return nil
}

// Timeout returns the per-solve budget.
func (c SolverConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// Module returns the engine registry entry.
func (c SolverConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Type, Conf: map[string]any{
		"tolerance":       c.Tolerance,
		"timeout_seconds": c.TimeoutSeconds,
		"max_nodes":       c.MaxNodes,
	}}
}

// BatchConfig sizes the scenario worker pool.
type BatchConfig struct {
	Workers int `json:"workers"`
}

func (c *BatchConfig) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
}

func (c BatchConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1, got %d", c.Workers)
	}
	return nil
}

// OutputConfig locates exported files.
type OutputConfig struct {
	Dir string `json:"dir"`
	// Profiles enables the hourly energy balance, SOC and import exports.
	Profiles bool `json:"profiles"`
}

func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "results"
	}
}
