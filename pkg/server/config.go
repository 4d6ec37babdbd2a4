package server

import (
	"fmt"
	"os"

	"github.com/hmartin/lobbychat/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`    // TCP bind address (e.g. ":8888")
	WebSocketAddr string `yaml:"websocket_addr"` // HTTP bind address for the /ws bridge (empty = disabled)
	MetricsAddr   string `yaml:"metrics_addr"`   // HTTP bind address for /metrics and /roster (empty = disabled)
	MaxLineBytes  int    `yaml:"max_line_bytes"` // cap on a single inbound line

	Log LogConfig `yaml:"log"`
}

// LogConfig holds the logging section of the config file.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":8888",
		WebSocketAddr: ":8889",
		MetricsAddr:   ":8890",
		MaxLineBytes:  protocol.MaxLineBytes,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults.
// Fields absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return cfg, fmt.Errorf("server: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parse config: %w", err)
	}

	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = protocol.MaxLineBytes
	}
	if cfg.ListenAddr == "" {
		return cfg, fmt.Errorf("server: config: listen_addr must not be empty")
	}
	return cfg, nil
}
