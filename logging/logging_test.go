package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParseLevel("")
	assert.False(t, ok)
	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvLogNoColor, "not-a-bool")

	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnvOverrides(&cfg)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level)
	assert.True(t, cfg.JSON)
	assert.False(t, cfg.NoColor, "unparseable values are ignored")
}

func TestInstallAndFor(t *testing.T) {
	var buf bytes.Buffer
	Install(Config{Level: zerolog.InfoLevel, JSON: true, Out: &buf})
	defer Install(Config{Level: zerolog.Disabled, JSON: true, Out: &bytes.Buffer{}})

	l := For("operator")
	l.Debug().Msg("hidden")
	l.Info().Int("elements", 4).Msg("setup")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "operator", entry["component"])
	assert.Equal(t, "matfree", entry["app"])
	assert.Equal(t, "setup", entry["message"])
	assert.EqualValues(t, 4, entry["elements"])
}
