package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("FS_COMMAND", "fs-server")

	dir := t.TempDir()
	path := filepath.Join(dir, "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: gpt-test
tools:
  - uri: tool://fs
    command: ${FS_COMMAND}
    args: ["--root", "/tmp"]
agents:
  - uri: agent://echo
    agentUrl: http://localhost:9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fs-server", cfg.Tools[0].Command)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultIterations, cfg.Iterations)
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cfg := &Config{Tools: []ToolServiceDefinition{{URI: "tool://x"}}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Agents: []AgentServiceDefinition{{URI: "agent://x"}}}
	assert.Error(t, cfg.Validate())

	cfg = &Config{
		Tools:  []ToolServiceDefinition{{URI: "dup", Command: "c"}},
		Agents: []AgentServiceDefinition{{URI: "dup", AgentURL: "http://x"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestConcurrencyFromEnv(t *testing.T) {
	t.Setenv("DEFAULT_CONCURRENCY", "4")
	assert.Equal(t, 4, ConcurrencyFromEnv())

	t.Setenv("DEFAULT_CONCURRENCY", "not-a-number")
	assert.Equal(t, DefaultConcurrency, ConcurrencyFromEnv())
}
