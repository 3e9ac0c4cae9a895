package smartrec

import (
	"fmt"
	"time"
)

// Config parameterizes one recording session.
type Config struct {
	// SourceURI is the live stream locator (required).
	SourceURI string
	// FileLoop loops file sources; ignored for live streams.
	FileLoop bool

	// RecordDir is the artifact output directory, created (including
	// parents) before the pipeline starts (required).
	RecordDir string
	// FilePrefix is the optional artifact filename prefix.
	FilePrefix string

	// CacheSeconds is the look-back cache capacity.
	CacheSeconds int
	// PreRollSeconds is the requested look-back before the trigger
	// instant, clamped to CacheSeconds when the trigger is issued.
	PreRollSeconds int
	// PostRollSeconds is the capture window after the trigger instant
	// (required, bounded by MaxPostRollSeconds).
	PostRollSeconds int
	// MaxPostRollSeconds bounds PostRollSeconds; 0 selects the default
	// of 300.
	MaxPostRollSeconds int
	// StartDelaySeconds is the delay from Run to the start trigger.
	StartDelaySeconds int
	// WatchdogSeconds is the completion fallback timeout armed at stop
	// time; 0 selects the default of 6.
	WatchdogSeconds int
	// StopReason is the reason code passed on the stop trigger.
	StopReason int

	// MuxWidth and MuxHeight are the aggregation stage's default
	// geometry, replaced by the discovered stream geometry.
	MuxWidth  int
	MuxHeight int
	// MuxBatchSize is the aggregation batch size (default 1).
	MuxBatchSize int
	// MuxBatchTimeoutUS is the batch formation timeout in microseconds
	// (default 40000).
	MuxBatchTimeoutUS int

	// SessionID and SessionName are written into the native context
	// record and echoed back on completion. The name is truncated to
	// 32 bytes.
	SessionID   uint32
	SessionName string
}

const (
	defaultCacheSeconds    = 30
	defaultMaxPostRoll     = 300
	defaultWatchdogSeconds = 6
	defaultMuxWidth        = 1920
	defaultMuxHeight       = 1080
	defaultMuxBatchSize    = 1
	defaultMuxTimeoutUS    = 40000
)

// validate applies defaults and fails fast on contradictory settings.
func (c *Config) validate() error {
	if c.SourceURI == "" {
		return fmt.Errorf("smartrec: source URI is required")
	}
	if c.RecordDir == "" {
		return fmt.Errorf("smartrec: record directory is required")
	}
	if c.PreRollSeconds < 0 {
		return fmt.Errorf("smartrec: pre-roll must be >= 0, got %d", c.PreRollSeconds)
	}
	if c.PostRollSeconds <= 0 {
		return fmt.Errorf("smartrec: post-roll must be > 0, got %d", c.PostRollSeconds)
	}

	if c.CacheSeconds <= 0 {
		c.CacheSeconds = defaultCacheSeconds
	}
	if c.MaxPostRollSeconds <= 0 {
		c.MaxPostRollSeconds = defaultMaxPostRoll
	}
	if c.PostRollSeconds > c.MaxPostRollSeconds {
		return fmt.Errorf("smartrec: post-roll %ds exceeds bound %ds",
			c.PostRollSeconds, c.MaxPostRollSeconds)
	}
	if c.StartDelaySeconds < 0 {
		return fmt.Errorf("smartrec: start delay must be >= 0, got %d", c.StartDelaySeconds)
	}
	if c.WatchdogSeconds <= 0 {
		c.WatchdogSeconds = defaultWatchdogSeconds
	}
	if c.MuxWidth <= 0 {
		c.MuxWidth = defaultMuxWidth
	}
	if c.MuxHeight <= 0 {
		c.MuxHeight = defaultMuxHeight
	}
	if c.MuxBatchSize <= 0 {
		c.MuxBatchSize = defaultMuxBatchSize
	}
	if c.MuxBatchTimeoutUS <= 0 {
		c.MuxBatchTimeoutUS = defaultMuxTimeoutUS
	}

	return nil
}

// Result is the session outcome.
type Result struct {
	// Outcome names the terminal path: completed, aborted, watchdog,
	// or canceled.
	Outcome string
	// Summary is the human-readable completion summary (empty unless
	// the session completed).
	Summary string

	// Artifact location and geometry as reported on completion.
	ArtifactDir  string
	ArtifactFile string
	Width        int
	Height       int

	// SessionID and SessionName echoed back through the native
	// context, when decodable.
	SessionID   uint32
	SessionName string

	// EffectivePreRoll is the clamped look-back actually requested.
	EffectivePreRoll int
	// StartIssued reports whether the start trigger was accepted.
	StartIssued bool
	// Elapsed is the total run loop duration.
	Elapsed time.Duration
}
