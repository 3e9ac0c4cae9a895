package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/e7canasta/smartrec/internal/arena"
	"github.com/e7canasta/smartrec/internal/report"
)

// fakeControl records trigger calls and signals when the start trigger
// has been issued.
type fakeControl struct {
	mu sync.Mutex

	startErr error
	stopErr  error

	started   chan struct{}
	stopped   chan struct{}
	keyPtr    unsafe.Pointer
	ctxPtr    unsafe.Pointer
	preRoll   uint
	postRoll  uint
	reason    int
	flowStops int
}

func newFakeControl() *fakeControl {
	return &fakeControl{
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (f *fakeControl) StartRecording(key, uctx unsafe.Pointer, preRoll, postRoll uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.keyPtr, f.ctxPtr = key, uctx
	f.preRoll, f.postRoll = preRoll, postRoll
	close(f.started)
	return nil
}

func (f *fakeControl) StopRecording(reason int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.reason = reason
	close(f.stopped)
	return nil
}

func (f *fakeControl) StopFlow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flowStops++
}

func (f *fakeControl) flowStopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flowStops
}

// fastTiming keeps run loop tests quick while preserving ordering:
// start < stop < watchdog.
func fastTiming() Timing {
	return Timing{
		StartDelay: 10 * time.Millisecond,
		StopDelay:  40 * time.Millisecond,
		Watchdog:   time.Second,
		QuitDelay:  30 * time.Millisecond,
	}
}

func testConfig(timing Timing) Config {
	return Config{
		SessionID:       1234,
		SessionName:     "sr-demo",
		PreRollSeconds:  3,
		PostRollSeconds: 5,
		CacheSeconds:    30,
		Timing:          timing,
	}
}

func runOrchestrator(t *testing.T, o *Orchestrator, ctx context.Context) <-chan Result {
	t.Helper()
	resCh := make(chan Result, 1)
	go func() {
		res, err := o.Run(ctx)
		if err != nil {
			t.Errorf("Run failed: %v", err)
		}
		resCh <- res
	}()
	return resCh
}

func waitResult(t *testing.T, resCh <-chan Result) Result {
	t.Helper()
	select {
	case res := <-resCh:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not terminate")
		return Result{}
	}
}

// TestEffectivePreRoll validates the clamp law: the effective pre-roll
// equals min(configured, cache capacity) for all inputs.
func TestEffectivePreRoll(t *testing.T) {
	cases := []struct {
		configured, cache, want int
	}{
		{3, 30, 3},
		{30, 30, 30},
		{45, 30, 30},
		{0, 30, 0},
		{5, 0, 0},
	}

	for _, tc := range cases {
		if got := EffectivePreRoll(tc.configured, tc.cache); got != tc.want {
			t.Errorf("EffectivePreRoll(%d, %d) = %d, want %d",
				tc.configured, tc.cache, got, tc.want)
		}
	}
}

// TestTimingFromSeconds validates the stop deadline law: with a 5s
// start delay and 5s post-roll, the stop trigger fires at t=11s.
func TestTimingFromSeconds(t *testing.T) {
	timing := TimingFromSeconds(5, 5, 6)

	if timing.StartDelay != 5*time.Second {
		t.Errorf("StartDelay = %v, want 5s", timing.StartDelay)
	}
	if timing.StopDelay != 11*time.Second {
		t.Errorf("StopDelay = %v, want 11s", timing.StopDelay)
	}
	if timing.Watchdog != 6*time.Second {
		t.Errorf("Watchdog = %v, want 6s", timing.Watchdog)
	}
}

// TestOrchestrator_CompletionPath exercises the normal terminal path:
// start, stop, completion with echoed context, summary with all values,
// and exactly-once cleanup.
func TestOrchestrator_CompletionPath(t *testing.T) {
	buffers := arena.New()
	ctl := newFakeControl()
	notifs := make(chan Notification, 4)

	o := New(testConfig(fastTiming()), ctl, buffers, notifs)
	resCh := runOrchestrator(t, o, context.Background())

	select {
	case <-ctl.started:
	case <-time.After(2 * time.Second):
		t.Fatal("start trigger never issued")
	}

	if ctl.preRoll != 3 || ctl.postRoll != 5 {
		t.Errorf("trigger window = (%d, %d), want (3, 5)", ctl.preRoll, ctl.postRoll)
	}

	select {
	case <-ctl.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop trigger never issued")
	}

	// The pipeline echoes a copy of the user context on completion.
	echo, ok := buffers.LookupNative(ctl.ctxPtr)
	if !ok {
		t.Fatal("user context pointer not resolvable")
	}

	notifs <- Notification{
		Kind: NotifyComplete,
		Completion: report.CompletionInfo{
			Dir:    "/out",
			File:   "test_0.mp4",
			Width:  1920,
			Height: 1080,
		},
		EchoedContext: echo,
	}

	res := waitResult(t, resCh)

	if res.Cause != CauseCompleted {
		t.Errorf("cause = %v, want completed", res.Cause)
	}
	if !res.StartIssued {
		t.Error("StartIssued = false, want true")
	}
	for _, want := range []string{"/out", "test_0.mp4", "1920x1080", "session.id=1234", `session.name="sr-demo"`} {
		if !strings.Contains(res.Summary, want) {
			t.Errorf("summary missing %q: %s", want, res.Summary)
		}
	}

	allocs, releases := buffers.Counts()
	if allocs != releases {
		t.Errorf("buffer counts = (%d, %d), want equal", allocs, releases)
	}
	if got := ctl.flowStopCount(); got != 1 {
		t.Errorf("flow stops = %d, want 1", got)
	}
}

// TestOrchestrator_CompletionIdempotence validates that a second
// terminal event arriving after completion cleanup is a no-op.
func TestOrchestrator_CompletionIdempotence(t *testing.T) {
	buffers := arena.New()
	ctl := newFakeControl()
	notifs := make(chan Notification, 4)

	timing := fastTiming()
	timing.QuitDelay = 100 * time.Millisecond

	o := New(testConfig(timing), ctl, buffers, notifs)
	resCh := runOrchestrator(t, o, context.Background())

	<-ctl.started
	<-ctl.stopped

	notifs <- Notification{Kind: NotifyComplete, Completion: report.CompletionInfo{Dir: "/out", File: "a.mp4"}}
	// A trailing error inside the quit window must not re-run cleanup
	// or change the terminal cause.
	notifs <- Notification{Kind: NotifyError, Err: fmt.Errorf("late error")}

	res := waitResult(t, resCh)

	if res.Cause != CauseCompleted {
		t.Errorf("cause = %v, want completed (late error must be a no-op)", res.Cause)
	}
	if got := ctl.flowStopCount(); got != 1 {
		t.Errorf("flow stops = %d, want 1", got)
	}
	allocs, releases := buffers.Counts()
	if allocs != releases {
		t.Errorf("buffer counts = (%d, %d), want equal", allocs, releases)
	}
}

// TestOrchestrator_WatchdogPath validates the degraded terminal path:
// completion never arrives and the watchdog forces termination with
// buffers released.
func TestOrchestrator_WatchdogPath(t *testing.T) {
	buffers := arena.New()
	ctl := newFakeControl()
	notifs := make(chan Notification)

	o := New(testConfig(fastTiming()), ctl, buffers, notifs)
	res := waitResult(t, runOrchestrator(t, o, context.Background()))

	if res.Cause != CauseWatchdog {
		t.Errorf("cause = %v, want watchdog", res.Cause)
	}
	allocs, releases := buffers.Counts()
	if allocs != 2 || releases != 2 {
		t.Errorf("buffer counts = (%d, %d), want (2, 2)", allocs, releases)
	}
	if got := ctl.flowStopCount(); got != 1 {
		t.Errorf("flow stops = %d, want 1", got)
	}
}

// TestOrchestrator_AbortPath validates that a pipeline error terminates
// immediately with the same cleanup as the other paths.
func TestOrchestrator_AbortPath(t *testing.T) {
	for _, kind := range []NotificationKind{NotifyError, NotifyEOS} {
		name := "error"
		if kind == NotifyEOS {
			name = "eos"
		}
		t.Run(name, func(t *testing.T) {
			buffers := arena.New()
			ctl := newFakeControl()
			notifs := make(chan Notification, 1)

			notifs <- Notification{Kind: kind, Err: fmt.Errorf("stream failed")}

			o := New(testConfig(fastTiming()), ctl, buffers, notifs)
			res := waitResult(t, runOrchestrator(t, o, context.Background()))

			if res.Cause != CauseAborted {
				t.Errorf("cause = %v, want aborted", res.Cause)
			}
			allocs, releases := buffers.Counts()
			if allocs != releases {
				t.Errorf("buffer counts = (%d, %d), want equal", allocs, releases)
			}
			if got := ctl.flowStopCount(); got != 1 {
				t.Errorf("flow stops = %d, want 1", got)
			}
		})
	}
}

// TestOrchestrator_StartFailureProceedsDegraded validates that a failed
// start trigger does not abort the session: the run continues and the
// watchdog still guarantees termination.
func TestOrchestrator_StartFailureProceedsDegraded(t *testing.T) {
	buffers := arena.New()
	ctl := newFakeControl()
	ctl.startErr = fmt.Errorf("start-sr rejected")
	notifs := make(chan Notification)

	o := New(testConfig(fastTiming()), ctl, buffers, notifs)
	res := waitResult(t, runOrchestrator(t, o, context.Background()))

	if res.StartIssued {
		t.Error("StartIssued = true, want false")
	}
	if res.Cause != CauseWatchdog {
		t.Errorf("cause = %v, want watchdog", res.Cause)
	}
	allocs, releases := buffers.Counts()
	if allocs != releases {
		t.Errorf("buffer counts = (%d, %d), want equal", allocs, releases)
	}
}

// TestOrchestrator_PreRollClampedAtTrigger validates that the issued
// pre-roll is clamped to the cache capacity.
func TestOrchestrator_PreRollClampedAtTrigger(t *testing.T) {
	buffers := arena.New()
	ctl := newFakeControl()
	notifs := make(chan Notification, 1)

	cfg := testConfig(fastTiming())
	cfg.PreRollSeconds = 60
	cfg.CacheSeconds = 30

	o := New(cfg, ctl, buffers, notifs)
	resCh := runOrchestrator(t, o, context.Background())

	<-ctl.started
	if ctl.preRoll != 30 {
		t.Errorf("issued pre-roll = %d, want 30 (clamped to cache)", ctl.preRoll)
	}

	notifs <- Notification{Kind: NotifyEOS}
	res := waitResult(t, resCh)
	if res.EffectivePreRoll != 30 {
		t.Errorf("EffectivePreRoll = %d, want 30", res.EffectivePreRoll)
	}
}

// TestOrchestrator_ContextCancellation validates cleanup on external
// cancellation before any trigger fires.
func TestOrchestrator_ContextCancellation(t *testing.T) {
	buffers := arena.New()
	ctl := newFakeControl()
	notifs := make(chan Notification)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(testConfig(fastTiming()), ctl, buffers, notifs)
	res := waitResult(t, runOrchestrator(t, o, ctx))

	if res.Cause != CauseCanceled {
		t.Errorf("cause = %v, want canceled", res.Cause)
	}
	allocs, releases := buffers.Counts()
	if allocs != releases {
		t.Errorf("buffer counts = (%d, %d), want equal", allocs, releases)
	}
}
