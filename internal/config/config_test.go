package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Engine.Mode)
	assert.Equal(t, 2*time.Second, cfg.Engine.Timeout.Std())
	assert.Equal(t, 5, cfg.Batch.ChunkSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Batch.Yield.Std())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Budgets)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "stratigraph.yml", `
store:
  driver: sqlite
  path: site.db
engine:
  mode: auto
  command: stratigraph
  args: [engine]
  timeout: 500ms
budgets:
  - upTo: 100
    maxDepth: 10
    maxNodes: 50
    timeout: 1s
log:
  level: debug
`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "site.db", cfg.Store.Path)
	assert.Equal(t, "auto", cfg.Engine.Mode)
	assert.Equal(t, []string{"engine"}, cfg.Engine.Args)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.Timeout.Std())
	require.Len(t, cfg.Budgets, 1)
	assert.Equal(t, 10, cfg.Budgets[0].MaxDepth)
	assert.Equal(t, time.Second, cfg.Budgets[0].Timeout.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Batch.ChunkSize, "unset sections keep defaults")
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "stratigraph.toml", `
[store]
driver = "kuzu"
path = "site.kuzu"

[batch]
chunk_size = 8
yield = "20ms"

[server]
addr = ":9000"
mcp_addr = ":9001"
`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "kuzu", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Batch.ChunkSize)
	assert.Equal(t, 20*time.Millisecond, cfg.Batch.Yield.Std())
	assert.Equal(t, ":9001", cfg.Server.MCPAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "stratigraph.yml", "store:\n  driver: memory\n")
	write(t, dir, ".env", "STRATIGRAPH_ADDR=:7000\n")
	t.Setenv("STRATIGRAPH_STORE_DRIVER", "sqlite")
	t.Setenv("STRATIGRAPH_STORE_PATH", "env.db")
	t.Setenv("STRATIGRAPH_ENGINE_TIMEOUT", "3s")
	t.Setenv("STRATIGRAPH_WATCH", "true")
	t.Cleanup(func() { os.Unsetenv("STRATIGRAPH_ADDR") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "env.db", cfg.Store.Path)
	assert.Equal(t, 3*time.Second, cfg.Engine.Timeout.Std())
	assert.True(t, cfg.Store.Watch)
	assert.Equal(t, ":7000", cfg.Server.Addr, ".env feeds the environment")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "store:\n  driver: postgres\n"},
		{"sqlite without path", "store:\n  driver: sqlite\n"},
		{"remote without command", "engine:\n  mode: remote\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"zero budget", "budgets:\n  - upTo: 1\n    maxDepth: 0\n    maxNodes: 1\n    timeout: 1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			write(t, dir, "stratigraph.yml", tt.yaml)
			_, err := Load(dir)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "stratigraph.yml", "engine:\n  timeout: soon\n")
	_, err := Load(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}
