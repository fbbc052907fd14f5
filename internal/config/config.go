// Package config loads server configuration from a YAML file overlaid with
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	// Registry configures how the registry endpoint is discovered.
	Registry RegistryConfig `yaml:"registry"`
	// Sandbox configures the allowlisted command runner.
	Sandbox SandboxConfig `yaml:"sandbox"`
	// LogFormat is "text" or "json". It is parsed but not consulted:
	// cmd/mcpshell picks terminal or JSON log output by whether the output
	// is a terminal.
	LogFormat string `yaml:"log_format"`
	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`
}

// RegistryConfig controls discovery of the local workload registry.
type RegistryConfig struct {
	// Host, if set, skips the environment/default host resolution step.
	Host string `yaml:"host"`
	// Port, if set, is probed directly before falling back to a full scan.
	Port int `yaml:"port"`
	// ScanRange bounds the port scan when Port is unset.
	ScanRangeStart int `yaml:"scan_range_start"`
	ScanRangeEnd   int `yaml:"scan_range_end"`
	// SkipScan short-circuits discovery to (Host, DefaultPort).
	SkipScan bool `yaml:"skip_scan"`
	// DefaultPort is used when SkipScan is set.
	DefaultPort int `yaml:"default_port"`
	// CallTimeout bounds every individual tool call (initialize, list_tools, call_tool).
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// SandboxConfig controls the sandboxed command runner.
type SandboxConfig struct {
	// DefaultTimeout is parsed but not passed to the engine; a command stage
	// that does not set its own timeout is bounded by
	// pipeline.DefaultCommandTimeout.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			ScanRangeStart: 8000,
			ScanRangeEnd:   8100,
			DefaultPort:    8080,
			CallTimeout:    30 * time.Second,
		},
		Sandbox: SandboxConfig{
			DefaultTimeout: 30 * time.Second,
		},
		LogFormat: "text",
	}
}

// Load reads a YAML configuration file, if path is non-empty, and applies
// environment overrides on top of it. An empty path is not an error; the
// defaults plus environment overrides are returned instead. A non-empty path
// that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Environment variable names. MCPSHELL_REGISTRY_HOST and
// MCPSHELL_IN_CONTAINER are the two variables ("a single
// variable optionally overrides the registry host; a second, set only by
// the container entrypoint, toggles the loopback rewrite policy").
const (
	EnvRegistryHost = "MCPSHELL_REGISTRY_HOST"
	EnvInContainer  = "MCPSHELL_IN_CONTAINER"
	EnvDebug        = "MCPSHELL_DEBUG"
)

func applyEnv(cfg *Config) {
	if host := os.Getenv(EnvRegistryHost); host != "" {
		cfg.Registry.Host = host
	}
	if os.Getenv(EnvDebug) != "" {
		cfg.Debug = true
	}
}
