// Package smartrec orchestrates a triggered smart-recording session
// against a live, continuously flowing media stream.
//
// The media pipeline maintains a bounded look-back cache of recent
// stream data; on a timed trigger the recorder extracts a contiguous
// window spanning a configurable interval before and after the trigger
// instant, writes it as a durable artifact, and reports completion
// asynchronously. One recorder runs exactly one session: one start
// trigger, one stop trigger, one stream.
//
// # Quick Start
//
//	cfg := smartrec.Config{
//	    SourceURI:         "rtsp://camera.local/stream",
//	    RecordDir:         "/var/lib/smartrec",
//	    FilePrefix:        "test_",
//	    CacheSeconds:      30,
//	    PreRollSeconds:    3,
//	    PostRollSeconds:   5,
//	    StartDelaySeconds: 5,
//	    SessionID:         1234,
//	    SessionName:       "sr-demo",
//	}
//
//	rec, err := smartrec.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := rec.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Summary)
//
// # Lifecycle
//
// The session orchestrator drives Idle → Armed → Capturing →
// StoppingOrCompleted → Terminated on a single run loop goroutine:
//
//   - At StartDelaySeconds the native context buffers are written and
//     the start trigger is issued with an effective pre-roll of
//     min(PreRollSeconds, CacheSeconds).
//   - At StartDelaySeconds + PostRollSeconds + 1 the stop trigger is
//     issued and a watchdog is armed.
//   - The session terminates on the completion event (normal), on a
//     pipeline error or end-of-stream (abort), or on watchdog expiry
//     (degraded). All three paths converge on the same cleanup: stop
//     the media flow, release the native buffers exactly once, exit
//     the loop. Late events after termination are no-ops.
//
// # Native context
//
// The pipeline stores a fixed-size user context (a 32-bit session id
// plus a 32-byte name field) alongside the recording and echoes it back
// verbatim on completion. The buffers live in native memory owned by an
// internal arena; they are written once before the start trigger and
// stay valid until the completion event (or its fallback) consumes
// them.
//
// # Dynamic geometry
//
// The live stream's width and height are known only once the first real
// data negotiates caps. A negotiator reacts to the source's dynamic
// output pad, reconfigures the aggregation stage to the discovered
// geometry (or a configured default when caps are unavailable), and
// links the stream into the stage's next free input slot at runtime.
//
// # Dependencies
//
// GStreamer 1.x with the DeepStream plugins (nvurisrcbin, nvstreammux,
// nvvideoconvert) must be installed; the pipeline fails fast at
// construction when an element is unavailable.
package smartrec
