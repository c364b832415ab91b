package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ToolServiceDefinition is one `tools:` entry of a service config file: a
// stdio MCP subprocess to spawn and register under URI (§4.8 add()'s
// "has a command field" case).
type ToolServiceDefinition struct {
	URI     string            `yaml:"uri"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// AgentServiceDefinition is one `agents:` entry: a remote A2A endpoint to
// wrap and register under URI (§4.8 add()'s "handle to an existing A2A
// agent" case; the create-agent "engine" case has no serializable config
// shape, so it is never expressed in a file, only via the Go API).
type AgentServiceDefinition struct {
	URI      string `yaml:"uri"`
	AgentURL string `yaml:"agentUrl"`
}

// Config is the on-disk shape of the orchestrator's service registration
// config: which tool and agent services to `Add` at startup, plus the
// iteration/concurrency knobs of §6 when the caller prefers a file to
// environment variables.
type Config struct {
	Model       string                    `yaml:"model"`
	Concurrency int                       `yaml:"concurrency,omitempty"`
	Iterations  int                       `yaml:"iterations,omitempty"`
	Tools       []ToolServiceDefinition   `yaml:"tools,omitempty"`
	Agents      []AgentServiceDefinition  `yaml:"agents,omitempty"`
}

// SetDefaults fills zero-valued knobs from DEFAULT_CONCURRENCY /
// DEFAULT_ITERATIONS, or the package defaults when those are unset (§6).
func (c *Config) SetDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = ConcurrencyFromEnv()
	}
	if c.Iterations == 0 {
		c.Iterations = IterationsFromEnv()
	}
}

// Validate checks the decoded config for the structural invariants every
// service definition must satisfy: a non-empty URI, and exactly the fields
// its kind requires.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Tools)+len(c.Agents))
	for _, t := range c.Tools {
		if t.URI == "" {
			return fmt.Errorf("config: tool service missing uri")
		}
		if t.Command == "" {
			return fmt.Errorf("config: tool service %q missing command", t.URI)
		}
		if seen[t.URI] {
			return fmt.Errorf("config: duplicate service uri %q", t.URI)
		}
		seen[t.URI] = true
	}
	for _, a := range c.Agents {
		if a.URI == "" {
			return fmt.Errorf("config: agent service missing uri")
		}
		if a.AgentURL == "" {
			return fmt.Errorf("config: agent service %q missing agentUrl", a.URI)
		}
		if seen[a.URI] {
			return fmt.Errorf("config: duplicate service uri %q", a.URI)
		}
		seen[a.URI] = true
	}
	return nil
}

// Load reads a YAML service-config file, expands environment variable
// references, decodes it, applies defaults, and validates it: a
// read -> expand -> decode -> default -> validate pipeline without a
// remote-provider or multi-backend layer, since this module's config always
// comes from one local file (§1 non-goal: no horizontal scale-out).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := ExpandString(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// §6 environment variable defaults and overrides.
const (
	DefaultConcurrency = 10
	DefaultIterations  = 10
)

// ConcurrencyFromEnv returns DEFAULT_CONCURRENCY from the environment, or
// DefaultConcurrency if unset/invalid. Read once at orchestrator
// construction time per the Design Notes' "global mutable knobs" guidance.
func ConcurrencyFromEnv() int {
	return envInt("DEFAULT_CONCURRENCY", DefaultConcurrency)
}

// IterationsFromEnv returns DEFAULT_ITERATIONS from the environment, or
// DefaultIterations if unset/invalid.
func IterationsFromEnv() int {
	return envInt("DEFAULT_ITERATIONS", DefaultIterations)
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
