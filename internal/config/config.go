// Package config loads and validates the recorder's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete recorder configuration.
type Config struct {
	InstanceID string       `yaml:"instance_id"`
	Source     SourceConfig `yaml:"source"`
	Record     RecordConfig `yaml:"record"`
	Mux        MuxConfig    `yaml:"mux"`
	Session    SessionCfg   `yaml:"session"`
}

// SourceConfig locates the live stream.
type SourceConfig struct {
	URI      string `yaml:"uri"`
	FileLoop bool   `yaml:"file_loop"` // loop file sources; ignored for live streams
}

// RecordConfig controls the smart-record window and artifact store.
type RecordConfig struct {
	Dir                string `yaml:"dir"`
	FilePrefix         string `yaml:"file_prefix"`
	CacheSeconds       int    `yaml:"cache_s"`         // look-back cache capacity
	PreRollSeconds     int    `yaml:"pre_roll_s"`      // clamped to cache_s at trigger time
	PostRollSeconds    int    `yaml:"post_roll_s"`
	MaxPostRollSeconds int    `yaml:"max_post_roll_s"` // hard bound on post_roll_s
	StartDelaySeconds  int    `yaml:"start_delay_s"`   // delay before the start trigger
	WatchdogSeconds    int    `yaml:"watchdog_s"`      // completion fallback timeout
}

// MuxConfig configures the aggregation stage defaults.
type MuxConfig struct {
	Width                int `yaml:"width"`
	Height               int `yaml:"height"`
	BatchSize            int `yaml:"batch_size"`
	BatchedPushTimeoutUS int `yaml:"batched_push_timeout_us"`
}

// SessionCfg identifies the recording session in the native context.
type SessionCfg struct {
	ID   uint32 `yaml:"id"`
	Name string `yaml:"name"`
}

// Load reads and parses a YAML configuration file, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
