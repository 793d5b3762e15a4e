package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/notargets/MatFree/logging"
	"github.com/notargets/MatFree/partitions"
	"github.com/notargets/MatFree/types"
)

// Config holds session and run settings
type Config struct {
	Resource          string
	Workers           int
	PartitionStrategy partitions.PartitionStrategy

	OCCA    OCCAConfig
	Log     LogConfig
	Problem ProblemConfig
}

type OCCAConfig struct {
	Props    string // OCCA device properties JSON; empty selects by resource
	TileSize int    // quadrature points per outer iteration of QFunction kernels
}

type LogConfig struct {
	Level string
	JSON  bool
}

// ProblemConfig sizes the model problem run by mfapply
type ProblemConfig struct {
	Elements int
	P        int // nodes per element
	Q        int // quadrature points per element
}

// config.toml key mapping
type fileConfig struct {
	Resource          string `toml:"resource"`
	Workers           int    `toml:"workers"`
	PartitionStrategy string `toml:"partition_strategy"`
	OCCA              struct {
		Props    string `toml:"props"`
		TileSize int    `toml:"tile_size"`
	} `toml:"occa"`
	Log struct {
		Level string `toml:"level"`
		JSON  bool   `toml:"json"`
	} `toml:"log"`
	Problem struct {
		Elements int `toml:"elements"`
		P        int `toml:"p"`
		Q        int `toml:"q"`
	} `toml:"problem"`
}

func Default() Config {
	return Config{
		Resource:          "/cpu/self/ref",
		Workers:           1,
		PartitionStrategy: partitions.BlockPartition,
		OCCA:              OCCAConfig{TileSize: 64},
		Log:               LogConfig{Level: "info"},
		Problem:           ProblemConfig{Elements: 8, P: 3, Q: 4},
	}
}

// Load reads a TOML file over Default and validates the result. Keys absent
// from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("%w: load config: %w", types.ErrConfiguration, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: load config: unknown key %q", types.ErrConfiguration, undecoded[0].String())
	}

	if meta.IsDefined("resource") {
		cfg.Resource = strings.TrimSpace(raw.Resource)
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("partition_strategy") {
		s, err := partitions.ParsePartitionStrategy(raw.PartitionStrategy)
		if err != nil {
			return Config{}, fmt.Errorf("%w: load config: %w", types.ErrConfiguration, err)
		}
		cfg.PartitionStrategy = s
	}
	if meta.IsDefined("occa", "props") {
		cfg.OCCA.Props = strings.TrimSpace(raw.OCCA.Props)
	}
	if meta.IsDefined("occa", "tile_size") {
		cfg.OCCA.TileSize = raw.OCCA.TileSize
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "json") {
		cfg.Log.JSON = raw.Log.JSON
	}
	if meta.IsDefined("problem", "elements") {
		cfg.Problem.Elements = raw.Problem.Elements
	}
	if meta.IsDefined("problem", "p") {
		cfg.Problem.P = raw.Problem.P
	}
	if meta.IsDefined("problem", "q") {
		cfg.Problem.Q = raw.Problem.Q
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case !strings.HasPrefix(c.Resource, "/"):
		return fmt.Errorf("%w: resource %q must start with '/'", types.ErrConfiguration, c.Resource)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", types.ErrConfiguration, c.Workers)
	case c.OCCA.TileSize < 1:
		return fmt.Errorf("%w: occa.tile_size must be at least 1, got %d", types.ErrConfiguration, c.OCCA.TileSize)
	case c.Problem.Elements < 1:
		return fmt.Errorf("%w: problem.elements must be at least 1, got %d", types.ErrConfiguration, c.Problem.Elements)
	case c.Problem.P < 2:
		return fmt.Errorf("%w: problem.p must be at least 2, got %d", types.ErrConfiguration, c.Problem.P)
	case c.Problem.Q < 1:
		return fmt.Errorf("%w: problem.q must be at least 1, got %d", types.ErrConfiguration, c.Problem.Q)
	}
	if c.Log.Level != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return fmt.Errorf("%w: unknown log level %q", types.ErrConfiguration, c.Log.Level)
		}
	}
	return nil
}

// LoggingConfig converts the [log] table for logging.Install
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		cfg.Level = lvl
	}
	cfg.JSON = c.Log.JSON
	logging.ApplyEnvOverrides(&cfg)
	return cfg
}
