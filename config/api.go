package config

import "fmt"

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
	// Token, when set, is required as a bearer token on /api/v1 routes.
	Token string `json:"token"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `json:"max_body_bytes"`
}

func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
}

func (c APIConfig) Validate() error {
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("api.max_body_bytes must be >= 0")
	}
	return nil
}
