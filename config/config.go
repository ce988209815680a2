// Package config loads the YAML configuration of the quant HTTP service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top level configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Chart     ChartConfig     `yaml:"chart"`
}

type ServerConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// PricingConfig holds response rounding and the default grid of underlying
// prices used for price curves. Precision is a pointer so that an explicit 0
// (round to whole units) is kept.
type PricingConfig struct {
	Precision   *int    `yaml:"precision"`
	CurvePoints int     `yaml:"curve_points"`
	SpotMin     float64 `yaml:"spot_min"`
	SpotMax     float64 `yaml:"spot_max"`
}

type BootstrapConfig struct {
	Layout         string  `yaml:"layout"`
	TenorTolerance float64 `yaml:"tenor_tolerance"`
}

type ChartConfig struct {
	Width  string `yaml:"width"`
	Height string `yaml:"height"`
	Title  string `yaml:"title"`
}

// Load reads a YAML config file and expands ${VAR} environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data after environment variable expansion.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadAndValidate loads config, applies defaults, and validates. An empty
// path yields the defaults.
func LoadAndValidate(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Digits returns the number of decimals responses are rounded to.
func (p PricingConfig) Digits() int32 {
	if p.Precision == nil {
		return DefaultPrecision
	}
	return int32(*p.Precision)
}
