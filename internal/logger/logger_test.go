package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestConsoleWriter_NoColor(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(consoleWriter(&buf, false))

	l.Info().Str("method", "GET").Int("status", 302).Msg("Request completed")

	out := buf.String()
	assert.Contains(t, out, "Request completed")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "status=302")
	assert.NotContains(t, out, "\033[")
}

func TestConsoleWriter_ColorsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(consoleWriter(&buf, true))

	l.Warn().Int("status", 410).Msg("Link expired")

	assert.Contains(t, buf.String(), ansi.red+"410"+ansi.reset)
}

func TestInit_SetsLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	Init("development")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Init("production")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
