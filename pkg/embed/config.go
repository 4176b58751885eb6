package quill

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the parsed quill.yaml document configuring an engine.
type Config struct {
	Limits        LimitsConfig `yaml:"limits"`
	FastOperators *bool        `yaml:"fast_operators"`
}

// LimitsConfig carries resource limits. Zero values mean "unlimited" for
// counters and sizes and "keep the default" for call levels and expression
// depth.
type LimitsConfig struct {
	MaxCallLevels int    `yaml:"max_call_levels"`
	MaxExprDepth  int    `yaml:"max_expr_depth"`
	MaxOperations uint64 `yaml:"max_operations"`
	MaxStringSize int    `yaml:"max_string_size"`
	MaxArraySize  int    `yaml:"max_array_size"`
	MaxMapSize    int    `yaml:"max_map_size"`
	MaxModules    int    `yaml:"max_modules"`
}

// LoadConfig reads and parses a quill.yaml file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses a quill.yaml document. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyConfig applies a parsed configuration to the engine.
func (e *Engine) ApplyConfig(cfg *Config) {
	limits := e.core.Limits()
	if cfg.Limits.MaxCallLevels > 0 {
		limits.MaxCallLevels = cfg.Limits.MaxCallLevels
	}
	if cfg.Limits.MaxExprDepth > 0 {
		limits.MaxExprDepth = cfg.Limits.MaxExprDepth
	}
	limits.MaxOperations = cfg.Limits.MaxOperations
	limits.MaxStringSize = cfg.Limits.MaxStringSize
	limits.MaxArraySize = cfg.Limits.MaxArraySize
	limits.MaxMapSize = cfg.Limits.MaxMapSize
	limits.MaxModules = cfg.Limits.MaxModules
	e.core.SetLimits(limits)

	if cfg.FastOperators != nil {
		e.core.SetFastOperators(*cfg.FastOperators)
	}
}

// LoadConfigFile reads quill.yaml from path and applies it.
func (e *Engine) LoadConfigFile(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	e.ApplyConfig(cfg)
	return nil
}
