package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir      string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DataDir        string   `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	DefaultBackend string   `json:"default_backend" yaml:"default_backend" toml:"default_backend"`
	Device         string   `json:"device" yaml:"device" toml:"device"`
	MaxConcurrent  int      `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	RetentionMin   int      `json:"retention_minutes" yaml:"retention_minutes" toml:"retention_minutes"`
	ReaperSec      int      `json:"reaper_interval_seconds" yaml:"reaper_interval_seconds" toml:"reaper_interval_seconds"`
	CleanupOff     bool     `json:"cleanup_disabled" yaml:"cleanup_disabled" toml:"cleanup_disabled"`
	MaxUploadMB    int      `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
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
