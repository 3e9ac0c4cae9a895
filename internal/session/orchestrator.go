// Package session drives the smart-record run lifecycle: it arms the
// native context buffers, issues the start and stop triggers on timers,
// and converges every terminal path (completion, abort, watchdog,
// cancellation) onto the same exactly-once cleanup.
//
// A single goroutine multiplexes all timers and pipeline notifications,
// so no two handlers ever execute concurrently. Terminal idempotence is
// enforced by one done flag checked-and-set inside that goroutine.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/e7canasta/smartrec/internal/arena"
	"github.com/e7canasta/smartrec/internal/report"
)

// State is the orchestrator lifecycle state.
type State int

const (
	// Idle means the run loop is waiting for the start timer.
	Idle State = iota
	// Armed means the context buffers are written and the start
	// trigger has been attempted.
	Armed
	// Capturing means the start trigger was issued successfully and
	// the pipeline is building the extraction window.
	Capturing
	// StoppingOrCompleted means the stop trigger was issued or the
	// completion event arrived; the session is draining.
	StoppingOrCompleted
	// Terminated is the final state; all cleanup has run.
	Terminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Capturing:
		return "capturing"
	case StoppingOrCompleted:
		return "stopping-or-completed"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Cause records which terminal path ended the session.
type Cause int

const (
	// CauseNone means the session has not terminated yet.
	CauseNone Cause = iota
	// CauseCompleted is the normal path: the completion event arrived.
	CauseCompleted
	// CauseAborted is the abort path: a pipeline error or end of
	// stream arrived before completion.
	CauseAborted
	// CauseWatchdog is the degraded path: completion never arrived
	// and the watchdog forced termination.
	CauseWatchdog
	// CauseCanceled means the surrounding context was cancelled.
	CauseCanceled
)

// String returns a human-readable cause name.
func (c Cause) String() string {
	switch c {
	case CauseCompleted:
		return "completed"
	case CauseAborted:
		return "aborted"
	case CauseWatchdog:
		return "watchdog"
	case CauseCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// NotificationKind classifies asynchronous pipeline notifications.
type NotificationKind int

const (
	// NotifyError is a pipeline error message.
	NotifyError NotificationKind = iota
	// NotifyEOS is an end-of-stream message.
	NotifyEOS
	// NotifyComplete is the smart-record completion event.
	NotifyComplete
)

// Notification is one asynchronous event from the media pipeline,
// delivered in emission order on the orchestrator's channel.
type Notification struct {
	Kind NotificationKind

	// Err carries the error payload for NotifyError.
	Err error

	// Completion carries the decoded payload for NotifyComplete.
	Completion report.CompletionInfo

	// EchoedContext is a byte copy of the user context echoed back on
	// completion; nil if the echo was missing or unresolvable.
	EchoedContext []byte
}

// MediaControl is the trigger surface of the external media pipeline.
// All calls are fire-and-forget signals; results arrive later as
// notifications.
type MediaControl interface {
	// StartRecording issues the start trigger with the native context
	// handles and the effective pre/post-roll window.
	StartRecording(sessionKey, userCtx unsafe.Pointer, preRollSec, postRollSec uint) error
	// StopRecording issues the stop trigger with a reason code.
	StopRecording(reason int) error
	// StopFlow halts the media flow immediately. Idempotent.
	StopFlow()
}

// Timing holds the run loop deadlines, all relative to loop start.
type Timing struct {
	// StartDelay is when the start trigger fires.
	StartDelay time.Duration
	// StopDelay is when the stop trigger fires.
	StopDelay time.Duration
	// Watchdog is armed at stop time and forces termination if the
	// completion event never arrives.
	Watchdog time.Duration
	// QuitDelay postpones loop exit after completion so trailing log
	// output can flush.
	QuitDelay time.Duration
}

// stopTriggerSlack is the extra second between post-roll expiry and the
// stop trigger, giving the pipeline a full post-roll window.
const stopTriggerSlack = time.Second

// TimingFromSeconds derives the run loop deadlines from configured
// whole-second intervals: the stop trigger fires at
// startDelay + postRoll + 1 seconds from loop start.
func TimingFromSeconds(startDelaySec, postRollSec, watchdogSec int) Timing {
	return Timing{
		StartDelay: time.Duration(startDelaySec) * time.Second,
		StopDelay:  time.Duration(startDelaySec+postRollSec)*time.Second + stopTriggerSlack,
		Watchdog:   time.Duration(watchdogSec) * time.Second,
		QuitDelay:  time.Second,
	}
}

// EffectivePreRoll clamps the configured pre-roll to the look-back
// cache capacity: the pipeline cannot extract more history than it
// holds.
func EffectivePreRoll(configuredSec, cacheSec int) int {
	if cacheSec < configuredSec {
		return cacheSec
	}
	return configuredSec
}

// Config parameterizes one recording session.
type Config struct {
	// SessionID and SessionName are written into the native context
	// record and echoed back on completion.
	SessionID   uint32
	SessionName string

	// PreRollSeconds is the requested look-back, clamped to
	// CacheSeconds at arm time.
	PreRollSeconds int
	// PostRollSeconds is the capture window after the trigger instant.
	PostRollSeconds int
	// CacheSeconds is the look-back cache capacity.
	CacheSeconds int

	// StopReason is the reason code passed on the stop trigger.
	StopReason int

	Timing Timing
}

// Result is the session outcome, readable after Run returns.
type Result struct {
	Cause            Cause
	Record           report.Record
	Summary          string
	EffectivePreRoll int
	StartIssued      bool
	Elapsed          time.Duration
}

// Orchestrator is the session state machine. Create one per run.
type Orchestrator struct {
	cfg     Config
	ctl     MediaControl
	buffers *arena.Arena
	notifs  <-chan Notification

	runID string

	state    State
	done     bool
	released bool

	keyHandle arena.Handle
	ctxHandle arena.Handle

	result Result
}

// New creates an orchestrator for one session. The notification channel
// is owned by the caller and fed by the pipeline's event router.
func New(cfg Config, ctl MediaControl, buffers *arena.Arena, notifs <-chan Notification) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		ctl:     ctl,
		buffers: buffers,
		notifs:  notifs,
		runID:   uuid.New().String(),
		state:   Idle,
	}
}

// State returns the current lifecycle state. Only meaningful from the
// loop goroutine or after Run returns.
func (o *Orchestrator) State() State {
	return o.state
}

// Result returns the session outcome. Valid after Run returns.
func (o *Orchestrator) Result() Result {
	return o.result
}

// Run executes the session to termination. It allocates the native
// context buffers up front (allocation failure is fatal: the session
// cannot start without them) and guarantees they are released exactly
// once on every exit path.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if err := o.allocate(); err != nil {
		return o.result, err
	}
	defer o.releaseBuffers()

	began := time.Now()
	defer func() { o.result.Elapsed = time.Since(began) }()

	slog.Info("session: run loop started",
		"run_id", o.runID,
		"start_delay", o.cfg.Timing.StartDelay,
		"stop_delay", o.cfg.Timing.StopDelay,
		"watchdog", o.cfg.Timing.Watchdog,
	)

	startTimer := time.NewTimer(o.cfg.Timing.StartDelay)
	defer startTimer.Stop()
	stopTimer := time.NewTimer(o.cfg.Timing.StopDelay)
	defer stopTimer.Stop()

	var watchdogC, quitC <-chan time.Time

	for o.state != Terminated {
		select {
		case <-ctx.Done():
			o.onCanceled()

		case <-startTimer.C:
			o.arm()

		case <-stopTimer.C:
			if o.requestStop() {
				wd := time.NewTimer(o.cfg.Timing.Watchdog)
				defer wd.Stop()
				watchdogC = wd.C
			}

		case <-watchdogC:
			o.onWatchdog()

		case n, ok := <-o.notifs:
			if !ok {
				// Router gone without a terminal event: treat as abort.
				o.onAbort(Notification{Kind: NotifyError, Err: fmt.Errorf("session: notification channel closed")})
				continue
			}
			switch n.Kind {
			case NotifyComplete:
				if c := o.onComplete(n); c != nil {
					quitC = c
				}
			case NotifyError, NotifyEOS:
				o.onAbort(n)
			}

		case <-quitC:
			o.state = Terminated
		}
	}

	slog.Info("session: run loop terminated",
		"run_id", o.runID,
		"cause", o.result.Cause.String(),
	)

	return o.result, nil
}

// allocate reserves the session key and user context buffers.
func (o *Orchestrator) allocate() error {
	key, err := o.buffers.Allocate(arena.SessionKeySize)
	if err != nil {
		return fmt.Errorf("session: cannot allocate session key: %w", err)
	}
	o.keyHandle = key

	uctx, err := o.buffers.Allocate(arena.ContextSize)
	if err != nil {
		// Allocation failure is fatal; back out the first buffer now.
		o.keyHandle = arena.Handle{}
		if rerr := o.buffers.Release(key); rerr != nil {
			slog.Error("session: release after failed allocation", "error", rerr)
		}
		return fmt.Errorf("session: cannot allocate user context: %w", err)
	}
	o.ctxHandle = uctx

	return nil
}

// arm writes the context buffers and issues the start trigger. Trigger
// failure is logged and the session proceeds degraded.
func (o *Orchestrator) arm() {
	if o.done || o.state != Idle {
		return
	}
	o.state = Armed

	eff := EffectivePreRoll(o.cfg.PreRollSeconds, o.cfg.CacheSeconds)
	o.result.EffectivePreRoll = eff

	if err := o.writeContexts(); err != nil {
		slog.Error("session: failed to write native context", "run_id", o.runID, "error", err)
	}

	err := o.ctl.StartRecording(
		o.buffers.Native(o.keyHandle),
		o.buffers.Native(o.ctxHandle),
		uint(eff),
		uint(o.cfg.PostRollSeconds),
	)
	if err != nil {
		slog.Error("session: start trigger failed, proceeding degraded",
			"run_id", o.runID,
			"error", err,
		)
		return
	}

	o.result.StartIssued = true
	o.state = Capturing
	slog.Info("session: recording started",
		"run_id", o.runID,
		"pre_roll_s", eff,
		"post_roll_s", o.cfg.PostRollSeconds,
	)
}

// writeContexts fills the native buffers. The buffers are written once
// here and must not be mutated again until release.
func (o *Orchestrator) writeContexts() error {
	keyBuf, err := o.buffers.Bytes(o.keyHandle)
	if err != nil {
		return err
	}
	if err := arena.PutSessionKey(keyBuf, o.cfg.SessionID); err != nil {
		return err
	}

	ctxBuf, err := o.buffers.Bytes(o.ctxHandle)
	if err != nil {
		return err
	}
	return arena.PutRecordContext(ctxBuf, arena.RecordContext{
		SessionID: o.cfg.SessionID,
		Name:      o.cfg.SessionName,
	})
}

// requestStop issues the stop trigger. Returns true when the watchdog
// should be armed (the session is still live).
func (o *Orchestrator) requestStop() bool {
	if o.done {
		return false
	}
	o.state = StoppingOrCompleted

	if err := o.ctl.StopRecording(o.cfg.StopReason); err != nil {
		slog.Error("session: stop trigger failed", "run_id", o.runID, "error", err)
	} else {
		slog.Info("session: stop requested", "run_id", o.runID, "reason", o.cfg.StopReason)
	}
	return true
}

// onComplete handles the normal terminal path. Returns the quit-delay
// channel that ends the loop once trailing logs have flushed.
func (o *Orchestrator) onComplete(n Notification) <-chan time.Time {
	if o.done {
		return nil
	}
	o.done = true
	o.state = StoppingOrCompleted
	o.result.Cause = CauseCompleted

	rec := report.Record{Info: n.Completion}
	rec.Context, rec.HasCtx = report.DecodeEchoedContext(n.EchoedContext)
	o.result.Record = rec
	o.result.Summary = report.Summary(rec)
	report.Emit(rec)

	o.ctl.StopFlow()
	o.releaseBuffers()

	return time.After(o.cfg.Timing.QuitDelay)
}

// onAbort handles pipeline error and end-of-stream.
func (o *Orchestrator) onAbort(n Notification) {
	if o.done {
		return
	}
	o.done = true
	o.result.Cause = CauseAborted

	if n.Kind == NotifyError {
		slog.Error("session: pipeline error, aborting", "run_id", o.runID, "error", n.Err)
	} else {
		slog.Info("session: end of stream, aborting", "run_id", o.runID)
	}

	o.ctl.StopFlow()
	o.releaseBuffers()
	o.state = Terminated
}

// onWatchdog handles the degraded terminal path: completion never
// arrived after the stop trigger.
func (o *Orchestrator) onWatchdog() {
	if o.done {
		return
	}
	o.done = true
	o.result.Cause = CauseWatchdog

	slog.Warn("session: completion not received, watchdog forcing termination",
		"run_id", o.runID,
		"watchdog", o.cfg.Timing.Watchdog,
	)

	o.ctl.StopFlow()
	o.releaseBuffers()
	o.state = Terminated
}

// onCanceled handles surrounding-context cancellation.
func (o *Orchestrator) onCanceled() {
	if o.done {
		// Cleanup already ran; just leave the loop.
		o.state = Terminated
		return
	}
	o.done = true
	o.result.Cause = CauseCanceled

	slog.Info("session: context cancelled, terminating", "run_id", o.runID)

	o.ctl.StopFlow()
	o.releaseBuffers()
	o.state = Terminated
}

// releaseBuffers frees both native buffers exactly once. Errors are
// logged and swallowed: cleanup must not fail during shutdown.
func (o *Orchestrator) releaseBuffers() {
	if o.released {
		return
	}
	o.released = true

	for _, h := range []arena.Handle{o.keyHandle, o.ctxHandle} {
		if !h.IsValid() {
			continue
		}
		if err := o.buffers.Release(h); err != nil {
			slog.Error("session: buffer release failed", "run_id", o.runID, "error", err)
		}
	}

	slog.Debug("session: native buffers released", "run_id", o.runID)
}
