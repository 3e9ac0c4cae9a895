package smartrec

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/e7canasta/smartrec/internal/arena"
	"github.com/e7canasta/smartrec/internal/pipeline"
	"github.com/e7canasta/smartrec/internal/session"
)

// Recorder runs one smart-recording session against one live stream.
type Recorder struct {
	cfg Config

	buffers *arena.Arena
	pipe    *pipeline.Pipeline
	orch    *session.Orchestrator
}

// New validates the configuration, creates the output directory, and
// builds the media pipeline. Pipeline construction failures are fatal:
// the session cannot run without its stages.
func New(cfg Config) (*Recorder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.RecordDir, 0o755); err != nil {
		return nil, fmt.Errorf("smartrec: cannot create record directory: %w", err)
	}

	buffers := arena.New()

	// Sized for the handful of events one session produces; senders
	// never block a pipeline thread.
	notifs := make(chan session.Notification, 8)

	pipe, err := pipeline.New(pipeline.Config{
		SourceURI:    cfg.SourceURI,
		RecordDir:    cfg.RecordDir,
		FilePrefix:   cfg.FilePrefix,
		CacheSeconds: cfg.CacheSeconds,
		FileLoop:     cfg.FileLoop,
		Mux: pipeline.MuxConfig{
			Width:                cfg.MuxWidth,
			Height:               cfg.MuxHeight,
			BatchSize:            cfg.MuxBatchSize,
			BatchedPushTimeoutUS: cfg.MuxBatchTimeoutUS,
		},
	}, buffers.LookupNative, notifs)
	if err != nil {
		return nil, err
	}

	orch := session.New(session.Config{
		SessionID:       cfg.SessionID,
		SessionName:     cfg.SessionName,
		PreRollSeconds:  cfg.PreRollSeconds,
		PostRollSeconds: cfg.PostRollSeconds,
		CacheSeconds:    cfg.CacheSeconds,
		StopReason:      cfg.StopReason,
		Timing: session.TimingFromSeconds(
			cfg.StartDelaySeconds,
			cfg.PostRollSeconds,
			cfg.WatchdogSeconds,
		),
	}, pipe, buffers, notifs)

	slog.Info("smartrec: recorder created",
		"uri", cfg.SourceURI,
		"record_dir", cfg.RecordDir,
		"pre_roll_s", cfg.PreRollSeconds,
		"post_roll_s", cfg.PostRollSeconds,
		"cache_s", cfg.CacheSeconds,
	)

	return &Recorder{
		cfg:     cfg,
		buffers: buffers,
		pipe:    pipe,
		orch:    orch,
	}, nil
}

// Run starts the media flow and executes the session to termination.
// The media flow is stopped and all native buffers are released on
// every exit path.
func (r *Recorder) Run(ctx context.Context) (Result, error) {
	if err := r.pipe.Start(); err != nil {
		r.pipe.StopFlow()
		return Result{}, err
	}

	busCtx, stopBus := context.WithCancel(ctx)
	defer stopBus()
	go r.pipe.RouteBus(busCtx)

	res, err := r.orch.Run(ctx)

	// Terminal paths already stop the flow; this covers early returns.
	r.pipe.StopFlow()

	if err != nil {
		return Result{}, err
	}
	return r.toResult(res), nil
}

func (r *Recorder) toResult(res session.Result) Result {
	out := Result{
		Outcome:          res.Cause.String(),
		Summary:          res.Summary,
		ArtifactDir:      res.Record.Info.Dir,
		ArtifactFile:     res.Record.Info.File,
		Width:            res.Record.Info.Width,
		Height:           res.Record.Info.Height,
		EffectivePreRoll: res.EffectivePreRoll,
		StartIssued:      res.StartIssued,
		Elapsed:          res.Elapsed,
	}
	if res.Record.HasCtx {
		out.SessionID = res.Record.Context.SessionID
		out.SessionName = res.Record.Context.Name
	}
	return out
}
