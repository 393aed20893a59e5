package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llamad/pkg/types"
)

// Defaults applied by ApplyDefaults when the corresponding field is unset.
const (
	DefaultPort        = 8080
	DefaultContextSize = 4096
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
	DefaultTopP        = 1.0
	DefaultTopK        = 40
	DefaultRepeatPen   = 1.1
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	Server types.ServerConfig `json:"server" yaml:"server" toml:"server"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with package defaults and returns the
// resulting config.
func ApplyDefaults(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = ":9090"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ContextSize <= 0 {
		cfg.Server.ContextSize = DefaultContextSize
	}
	if cfg.Server.Temperature <= 0 {
		cfg.Server.Temperature = DefaultTemperature
	}
	if cfg.Server.MaxTokens <= 0 {
		cfg.Server.MaxTokens = DefaultMaxTokens
	}
	if cfg.Server.TopP <= 0 {
		cfg.Server.TopP = DefaultTopP
	}
	if cfg.Server.TopK <= 0 {
		cfg.Server.TopK = DefaultTopK
	}
	if cfg.Server.RepeatPenalty <= 0 {
		cfg.Server.RepeatPenalty = DefaultRepeatPen
	}
	return cfg
}
