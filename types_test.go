package smartrec

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		SourceURI:       "rtsp://camera.local/stream",
		RecordDir:       "/var/lib/smartrec",
		PreRollSeconds:  3,
		PostRollSeconds: 5,
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if cfg.CacheSeconds != defaultCacheSeconds {
		t.Errorf("CacheSeconds = %d, want default %d", cfg.CacheSeconds, defaultCacheSeconds)
	}
	if cfg.WatchdogSeconds != defaultWatchdogSeconds {
		t.Errorf("WatchdogSeconds = %d, want default %d", cfg.WatchdogSeconds, defaultWatchdogSeconds)
	}
	if cfg.MaxPostRollSeconds != defaultMaxPostRoll {
		t.Errorf("MaxPostRollSeconds = %d, want default %d", cfg.MaxPostRollSeconds, defaultMaxPostRoll)
	}
	if cfg.MuxWidth != defaultMuxWidth || cfg.MuxHeight != defaultMuxHeight {
		t.Errorf("mux geometry = %dx%d, want defaults", cfg.MuxWidth, cfg.MuxHeight)
	}
	if cfg.MuxBatchSize != defaultMuxBatchSize {
		t.Errorf("MuxBatchSize = %d, want default %d", cfg.MuxBatchSize, defaultMuxBatchSize)
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing_uri", func(c *Config) { c.SourceURI = "" }, "source URI"},
		{"missing_dir", func(c *Config) { c.RecordDir = "" }, "record directory"},
		{"negative_preroll", func(c *Config) { c.PreRollSeconds = -1 }, "pre-roll"},
		{"zero_postroll", func(c *Config) { c.PostRollSeconds = 0 }, "post-roll"},
		{"negative_start_delay", func(c *Config) { c.StartDelaySeconds = -1 }, "start delay"},
		{"postroll_over_bound", func(c *Config) {
			c.PostRollSeconds = 10
			c.MaxPostRollSeconds = 5
		}, "exceeds bound"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.validate()
			if err == nil {
				t.Fatal("validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
