package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("WARN", LogFormatJSON, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("build_id", "p:1").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"build_id":"p:1"`)
}

func TestNewLogger_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("", LogFormatJSON, &buf)
	require.NoError(t, err)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	assert.NotContains(t, buf.String(), `"message":"debug"`)
	assert.Contains(t, buf.String(), `"message":"info"`)
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", LogFormatConsole, &buf)
	require.NoError(t, err)

	logger.Info().Msg("Build started")
	assert.Contains(t, buf.String(), "Build started")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger("loud", LogFormatJSON, &bytes.Buffer{})
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}
