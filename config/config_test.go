package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/MatFree/partitions"
	"github.com/notargets/MatFree/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matfree.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/cpu/self/ref", cfg.Resource)
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
resource = "/cpu/occa"
workers = 4
partition_strategy = "roundrobin"

[occa]
props = '{"mode": "Serial"}'

[problem]
elements = 16
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/cpu/occa", cfg.Resource)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, partitions.RoundRobin, cfg.PartitionStrategy)
	assert.Equal(t, `{"mode": "Serial"}`, cfg.OCCA.Props)
	assert.Equal(t, 64, cfg.OCCA.TileSize, "absent keys keep defaults")
	assert.Equal(t, 16, cfg.Problem.Elements)
	assert.Equal(t, 3, cfg.Problem.P)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"Syntax":       `workers = `,
		"UnknownKey":   `colour = "blue"`,
		"BadStrategy":  `partition_strategy = "metis"`,
		"ZeroWorkers":  `workers = 0`,
		"Resource":     `resource = "cpu"`,
		"LogLevel":     "[log]\nlevel = \"loud\"",
		"LinearNeedsP": "[problem]\np = 1",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})
}

func TestLoggingConfig(t *testing.T) {
	t.Setenv("MATFREE_LOG_LEVEL", "")
	cfg := Default()
	cfg.Log = LogConfig{Level: "debug", JSON: true}

	lc := cfg.LoggingConfig()
	assert.Equal(t, zerolog.DebugLevel, lc.Level)
	assert.True(t, lc.JSON)
}
