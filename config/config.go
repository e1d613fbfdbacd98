package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/mesplan/core/metrics"
	"github.com/kilianp07/mesplan/infra/monitoring"
	"github.com/kilianp07/mesplan/infra/mqtt"
	"github.com/kilianp07/mesplan/infra/store"
	"github.com/kilianp07/mesplan/infra/timeseries"
)

// EnvPrefix starts every environment override. MES_SOLVER__TIMEOUT_SECONDS
// sets solver.timeout_seconds.
const EnvPrefix = "MES_"

type Config struct {
	Data    timeseries.Config `json:"data"`
	Solver  SolverConfig      `json:"solver"`
	Batch   BatchConfig       `json:"batch"`
	Metrics metrics.Config    `json:"metrics"`
	Store   store.Config      `json:"store"`
	MQTT    mqtt.Config       `json:"mqtt"`
	API     APIConfig         `json:"api"`
	Logging LoggingConfig     `json:"logging"`
	Output  OutputConfig      `json:"output"`
	Sentry  monitoring.Config `json:"sentry"`
}

// Load reads path, applies environment overrides, then defaults, and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied. It is used
// when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Data.SetDefaults()
	c.Solver.SetDefaults()
	c.Batch.SetDefaults()
	c.Store.SetDefaults()
	c.API.SetDefaults()
	c.Logging.SetDefaults()
	c.Output.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section. The data path is checked by the commands
// that need it.
func (c Config) Validate() error {
	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if err := c.Batch.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if r := c.Sentry.TracesSampleRate; r < 0 || r > 1 {
		return fmt.Errorf("sentry: traces_sample_rate must be within [0,1], got %g", r)
	}
	return c.Logging.Validate()
}
