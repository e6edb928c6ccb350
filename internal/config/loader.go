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

// Config holds the options a network is built from. It is read once and
// treated as immutable afterwards; zero values are filled by ApplyDefaults.
type Config struct {
	ModelName    string   `json:"model_name" yaml:"model_name" toml:"model_name"`
	BackboneType string   `json:"backbone_type" yaml:"backbone_type" toml:"backbone_type"`
	Device       []string `json:"device" yaml:"device" toml:"device"`
	Increment    int      `json:"increment" yaml:"increment" toml:"increment"`
	InitCls      int      `json:"init_cls" yaml:"init_cls" toml:"init_cls"`
	UseInitPTM   bool     `json:"use_init_ptm" yaml:"use_init_ptm" toml:"use_init_ptm"`
	Alpha        float64  `json:"alpha" yaml:"alpha" toml:"alpha"`
	Beta         float64  `json:"beta" yaml:"beta" toml:"beta"`
	MoniAdam     bool     `json:"moni_adam" yaml:"moni_adam" toml:"moni_adam"`
	UseReweight  bool     `json:"use_reweight" yaml:"use_reweight" toml:"use_reweight"`
	FFNNum       int      `json:"ffn_num" yaml:"ffn_num" toml:"ffn_num"`

	// Not part of the network arguments proper.
	WeightsDir string `json:"weights_dir" yaml:"weights_dir" toml:"weights_dir"`
	Seed       int64  `json:"seed" yaml:"seed" toml:"seed"`
	Addr       string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel   string `json:"log_level" yaml:"log_level" toml:"log_level"`
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
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// PrimaryDevice returns the first configured device, or "cpu" when none is set.
func (c Config) PrimaryDevice() string {
	if len(c.Device) == 0 || c.Device[0] == "" {
		return DefaultDevice
	}
	return c.Device[0]
}
