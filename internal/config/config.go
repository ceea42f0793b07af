package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all server configuration. Values resolve in order:
// built-in defaults, then an optional YAML config file, then environment
// variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Terminal  TerminalConfig  `yaml:"terminal"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" yaml:"host"`
	Port string `envconfig:"PORT" yaml:"port"`
}

// TerminalConfig holds terminal session manager configuration.
type TerminalConfig struct {
	// ShellCommand is the argv used to start each terminal. Empty falls
	// back to $SHELL, then /bin/bash.
	ShellCommand []string `envconfig:"SHELL_COMMAND" yaml:"shell_command"`
	// RootDir anchors relative cwd values from creation requests and is
	// the fallback when a requested cwd does not exist.
	RootDir string `envconfig:"ROOT_DIR" yaml:"root_dir"`
	// Rows and Cols set the initial PTY window size.
	Rows uint16 `envconfig:"TERMINAL_ROWS" yaml:"rows"`
	Cols uint16 `envconfig:"TERMINAL_COLS" yaml:"cols"`
	// CullInactiveTimeout is the idle threshold in seconds after which a
	// session is reaped. Zero disables culling.
	CullInactiveTimeout int `envconfig:"CULL_INACTIVE_TIMEOUT" yaml:"cull_inactive_timeout"`
	// CullInterval is the seconds between culling scans.
	CullInterval int `envconfig:"CULL_INTERVAL" yaml:"cull_interval"`
	// BufferChunks and BufferBytes cap the per-session replay buffer.
	BufferChunks int `envconfig:"BUFFER_CHUNKS" yaml:"buffer_chunks"`
	BufferBytes  int `envconfig:"BUFFER_BYTES" yaml:"buffer_bytes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8888",
		},
		Terminal: TerminalConfig{
			Rows:         24,
			Cols:         80,
			CullInterval: 300,
			BufferChunks: 1000,
			BufferBytes:  256 * 1024,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
		},
	}
}

// Load resolves configuration from defaults, the YAML file at path (if
// non-empty), and finally environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}

// CullTimeout returns the idle threshold as a duration.
func (c *TerminalConfig) CullTimeout() time.Duration {
	return time.Duration(c.CullInactiveTimeout) * time.Second
}

// CullEvery returns the scan period as a duration.
func (c *TerminalConfig) CullEvery() time.Duration {
	return time.Duration(c.CullInterval) * time.Second
}
