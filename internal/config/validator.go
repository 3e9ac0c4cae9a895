package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Defaults applied by Validate when fields are unset.
const (
	DefaultCacheSeconds       = 30
	DefaultWatchdogSeconds    = 6
	DefaultMaxPostRollSeconds = 300
	DefaultMuxWidth           = 1920
	DefaultMuxHeight          = 1080
	DefaultBatchSize          = 1
	DefaultBatchTimeoutUS     = 40000
)

// Validate checks the configuration and fills in defaults. Violating
// the post-roll bound is a hard error: the bound is an explicit
// contract, not a silent clamp.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.Source.URI == "" {
		return fmt.Errorf("source.uri is required")
	}
	if cfg.Record.Dir == "" {
		return fmt.Errorf("record.dir is required")
	}

	if cfg.Record.CacheSeconds <= 0 {
		cfg.Record.CacheSeconds = DefaultCacheSeconds
	}
	if cfg.Record.PreRollSeconds < 0 {
		return fmt.Errorf("record.pre_roll_s must be >= 0")
	}
	if cfg.Record.PostRollSeconds <= 0 {
		return fmt.Errorf("record.post_roll_s must be > 0")
	}
	if cfg.Record.MaxPostRollSeconds <= 0 {
		cfg.Record.MaxPostRollSeconds = DefaultMaxPostRollSeconds
	}
	if cfg.Record.PostRollSeconds > cfg.Record.MaxPostRollSeconds {
		return fmt.Errorf("record.post_roll_s %d exceeds max_post_roll_s %d",
			cfg.Record.PostRollSeconds, cfg.Record.MaxPostRollSeconds)
	}
	if cfg.Record.StartDelaySeconds < 0 {
		return fmt.Errorf("record.start_delay_s must be >= 0")
	}
	if cfg.Record.WatchdogSeconds <= 0 {
		cfg.Record.WatchdogSeconds = DefaultWatchdogSeconds
	}

	if cfg.Mux.Width <= 0 {
		cfg.Mux.Width = DefaultMuxWidth
	}
	if cfg.Mux.Height <= 0 {
		cfg.Mux.Height = DefaultMuxHeight
	}
	if cfg.Mux.BatchSize <= 0 {
		cfg.Mux.BatchSize = DefaultBatchSize
	}
	if cfg.Mux.BatchedPushTimeoutUS <= 0 {
		cfg.Mux.BatchedPushTimeoutUS = DefaultBatchTimeoutUS
	}

	if cfg.Session.Name == "" {
		cfg.Session.Name = cfg.InstanceID
	}
	if len(cfg.Session.Name) > 32 {
		return fmt.Errorf("session.name must be at most 32 bytes, got %d", len(cfg.Session.Name))
	}

	return nil
}
