package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestWriterLogger_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("planner", &buf)
	l.Infof("solved %s", "base")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "planner", line["component"])
	assert.Equal(t, "solved base", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	require.NoError(t, SetLevel("warn"))
	var buf bytes.Buffer
	l := NewWriterLogger("planner", &buf)
	l.Infof("hidden")
	assert.Zero(t, buf.Len())
	l.Warnf("shown")
	assert.Contains(t, buf.String(), "shown")

	require.NoError(t, SetLevel(""))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("loud"))
}
