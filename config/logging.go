package config

import (
	"fmt"
	"strings"
)

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		return nil
	}
	return fmt.Errorf("unknown logging level %s", c.Level)
}
