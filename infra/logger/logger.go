package logger

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/mesplan/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component. The environment is detected via
// the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// SetLevel sets the minimum level of every zerolog logger. An empty level
// keeps the current one.
func SetLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		return nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("logging level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(l)
	return nil
}
