package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration written as "10ms" or "3s" in config files.
type Duration time.Duration

// UnmarshalText parses TOML strings.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes the duration back in Go notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML parses YAML scalars.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// Std returns the standard library value.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StoreConfig selects the relation store.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver" validate:"oneof=memory sqlite kuzu"`
	// Path is the database file for sqlite and the database directory for kuzu.
	Path string `yaml:"path,omitempty" toml:"path" validate:"required_unless=Driver memory"`
	// Dataset is a YAML site file imported at startup and, for the memory
	// driver, watched for changes.
	Dataset string `yaml:"dataset,omitempty" toml:"dataset"`
	Watch   bool   `yaml:"watch,omitempty" toml:"watch"`
}

// EngineConfig selects the single-relation engine.
type EngineConfig struct {
	Mode    string   `yaml:"mode" toml:"mode" validate:"oneof=local remote auto"`
	Command string   `yaml:"command,omitempty" toml:"command" validate:"required_unless=Mode local"`
	Args    []string `yaml:"args,omitempty" toml:"args"`
	Timeout Duration `yaml:"timeout" toml:"timeout" validate:"gt=0"`
}

// TierConfig overrides one exploration budget tier.
type TierConfig struct {
	UpTo     int      `yaml:"upTo" toml:"up_to" validate:"gte=0"`
	MaxDepth int      `yaml:"maxDepth" toml:"max_depth" validate:"gt=0"`
	MaxNodes int      `yaml:"maxNodes" toml:"max_nodes" validate:"gt=0"`
	Timeout  Duration `yaml:"timeout" toml:"timeout" validate:"gt=0"`
}

// BatchConfig controls batch chunking.
type BatchConfig struct {
	ChunkSize int      `yaml:"chunkSize" toml:"chunk_size" validate:"gt=0"`
	Yield     Duration `yaml:"yield" toml:"yield" validate:"gte=0"`
}

// ServerConfig holds listen addresses for `serve`.
type ServerConfig struct {
	Addr    string `yaml:"addr" toml:"addr" validate:"required"`
	MCPAddr string `yaml:"mcpAddr,omitempty" toml:"mcp_addr"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
}

// Config is the full configuration, loaded from stratigraph.yml,
// stratigraph.yaml or stratigraph.toml, then .env, then STRATIGRAPH_*
// environment variables.
type Config struct {
	Store   StoreConfig  `yaml:"store" toml:"store"`
	Engine  EngineConfig `yaml:"engine" toml:"engine"`
	Budgets []TierConfig `yaml:"budgets,omitempty" toml:"budgets" validate:"dive"`
	Batch   BatchConfig  `yaml:"batch" toml:"batch"`
	Server  ServerConfig `yaml:"server" toml:"server"`
	Log     LogConfig    `yaml:"log" toml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "memory"},
		Engine: EngineConfig{Mode: "local", Timeout: Duration(2 * time.Second)},
		Batch:  BatchConfig{ChunkSize: 5, Yield: Duration(10 * time.Millisecond)},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the configuration for dir. A missing file yields defaults.
func Load(dir string) (*Config, error) {
	cfg := Default()
	if err := loadFile(dir, cfg); err != nil {
		return nil, err
	}
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(dir string, cfg *Config) error {
	for _, name := range []string{"stratigraph.yml", "stratigraph.yaml", "stratigraph.toml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.HasSuffix(name, ".toml") {
			err = toml.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// applyEnv overrides file values with STRATIGRAPH_* variables.
func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"STRATIGRAPH_STORE_DRIVER":   &cfg.Store.Driver,
		"STRATIGRAPH_STORE_PATH":     &cfg.Store.Path,
		"STRATIGRAPH_DATASET":        &cfg.Store.Dataset,
		"STRATIGRAPH_ENGINE_MODE":    &cfg.Engine.Mode,
		"STRATIGRAPH_ENGINE_COMMAND": &cfg.Engine.Command,
		"STRATIGRAPH_ADDR":           &cfg.Server.Addr,
		"STRATIGRAPH_MCP_ADDR":       &cfg.Server.MCPAddr,
		"STRATIGRAPH_LOG_LEVEL":      &cfg.Log.Level,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("STRATIGRAPH_WATCH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: STRATIGRAPH_WATCH: %v", ErrInvalid, err)
		}
		cfg.Store.Watch = b
	}
	if v, ok := os.LookupEnv("STRATIGRAPH_ENGINE_TIMEOUT"); ok {
		if err := cfg.Engine.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%w: STRATIGRAPH_ENGINE_TIMEOUT: %v", ErrInvalid, err)
		}
	}
	if v, ok := os.LookupEnv("STRATIGRAPH_BATCH_CHUNK"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: STRATIGRAPH_BATCH_CHUNK: %v", ErrInvalid, err)
		}
		cfg.Batch.ChunkSize = n
	}
	return nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
