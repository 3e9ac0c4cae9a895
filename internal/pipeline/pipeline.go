// Package pipeline adapts the external GStreamer media pipeline to the
// orchestrator's capability-and-event surface: element construction and
// property configuration, the smart-record trigger surface, dynamic pad
// negotiation, and routing of asynchronous bus notifications.
package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/smartrec/internal/negotiate"
	"github.com/e7canasta/smartrec/internal/session"
)

// MuxConfig configures the aggregation stage (nvstreammux).
type MuxConfig struct {
	// Width and Height are the default muxed geometry, replaced by the
	// discovered stream geometry at negotiation time.
	Width  int
	Height int
	// BatchSize is the number of aggregated inputs (one per session).
	BatchSize int
	// BatchedPushTimeoutUS is the batch formation timeout in
	// microseconds.
	BatchedPushTimeoutUS int
}

// Config configures the media pipeline.
type Config struct {
	// SourceURI is the live stream locator (RTSP or file URI).
	SourceURI string
	// RecordDir is where the pipeline writes recording artifacts.
	RecordDir string
	// FilePrefix is the optional artifact filename prefix, applied
	// best-effort (older source elements lack the property).
	FilePrefix string
	// CacheSeconds is the look-back cache capacity.
	CacheSeconds int
	// FileLoop loops file sources; ignored for live streams.
	FileLoop bool

	Mux MuxConfig
}

// ContextResolver resolves a native user-context pointer echoed by the
// pipeline to a copy of its bytes. Typically arena.LookupNative.
type ContextResolver func(unsafe.Pointer) ([]byte, bool)

// smart-record mode 2 enables full (audio+video) smart record on the
// source bin.
const smartRecordModeFull = 2

// Pipeline owns the GStreamer topology:
//
//	nvurisrcbin ─(dynamic pad)→ queue → nvstreammux → nvvideoconvert → fakesink
//
// The source bin maintains the look-back cache and implements the
// smart-record triggers; the rest of the chain keeps the stream flowing
// so the cache stays warm.
type Pipeline struct {
	pipeline *gst.Pipeline
	src      *gst.Element
	mux      *gst.Element

	negotiator *negotiate.Negotiator
	resolveCtx ContextResolver
	notifs     chan<- session.Notification

	stopped atomic.Bool
}

// New builds and configures the pipeline without starting it. A missing
// element is fatal: the session cannot run without its stages.
// Notifications (error, end-of-stream, completion) are delivered on
// notifs in emission order.
func New(cfg Config, resolve ContextResolver, notifs chan<- session.Notification) (*Pipeline, error) {
	gst.Init(nil)

	pl, err := gst.NewPipeline("smartrec")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("nvurisrcbin")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create nvurisrcbin: %w", err)
	}
	mux, err := gst.NewElement("nvstreammux")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create nvstreammux: %w", err)
	}
	queue, err := gst.NewElement("queue")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create queue: %w", err)
	}
	conv, err := gst.NewElement("nvvideoconvert")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create nvvideoconvert: %w", err)
	}
	sink, err := gst.NewElement("fakesink")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create fakesink: %w", err)
	}

	// Source bin: stream locator plus the smart-record surface.
	src.SetProperty("uri", cfg.SourceURI)
	src.SetProperty("file-loop", cfg.FileLoop)
	src.SetProperty("smart-record", smartRecordModeFull)
	src.SetProperty("smart-rec-dir-path", cfg.RecordDir)
	src.SetProperty("smart-rec-cache", uint(cfg.CacheSeconds))
	if cfg.FilePrefix != "" {
		// Degraded-continue: the property does not exist on older
		// element versions.
		if err := src.SetProperty("smart-rec-file-prefix", cfg.FilePrefix); err != nil {
			slog.Warn("pipeline: file prefix unsupported, continuing without it",
				"prefix", cfg.FilePrefix,
				"error", err,
			)
		}
	}

	// Aggregation stage defaults; geometry is replaced once the live
	// stream negotiates caps.
	mux.SetProperty("batch-size", uint(cfg.Mux.BatchSize))
	mux.SetProperty("live-source", boolToInt(strings.HasPrefix(cfg.SourceURI, "rtsp://")))
	mux.SetProperty("width", uint(cfg.Mux.Width))
	mux.SetProperty("height", uint(cfg.Mux.Height))
	mux.SetProperty("batched-push-timeout", cfg.Mux.BatchedPushTimeoutUS)

	if err := pl.AddMany(src, queue, mux, conv, sink); err != nil {
		return nil, fmt.Errorf("pipeline: failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(mux, conv, sink); err != nil {
		return nil, fmt.Errorf("pipeline: failed to link mux chain: %w", err)
	}

	p := &Pipeline{
		pipeline:   pl,
		src:        src,
		mux:        mux,
		resolveCtx: resolve,
		notifs:     notifs,
	}

	p.negotiator = negotiate.New(
		&muxAggregator{mux: mux, queue: queue},
		negotiate.Geometry{Width: cfg.Mux.Width, Height: cfg.Mux.Height},
	)

	// nvurisrcbin exposes its decoded output as a dynamic pad, created
	// only once the first real data has negotiated caps.
	src.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		p.negotiator.OnPadDiscovered(sourcePad{pad: pad})
	})

	// Completion event: decode the native payload and copy the echoed
	// user context before the callback returns.
	src.Connect("sr-done", func(_ *gst.Element, infoPtr, ctxPtr unsafe.Pointer) {
		p.onRecordingComplete(infoPtr, ctxPtr)
	})

	slog.Info("pipeline: created",
		"uri", cfg.SourceURI,
		"record_dir", cfg.RecordDir,
		"cache_s", cfg.CacheSeconds,
		"mux_geometry", fmt.Sprintf("%dx%d", cfg.Mux.Width, cfg.Mux.Height),
	)

	return p, nil
}

// Start sets the pipeline to PLAYING. The look-back cache starts
// filling as soon as the stream flows.
func (p *Pipeline) Start() error {
	if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("pipeline: failed to start: %w", err)
	}
	slog.Info("pipeline: playing")
	return nil
}

// StartRecording issues the start trigger with the native context
// handles. The pipeline begins extracting the recording window
// asynchronously; completion arrives later as a notification.
func (p *Pipeline) StartRecording(sessionKey, userCtx unsafe.Pointer, preRollSec, postRollSec uint) error {
	_, err := p.src.Emit("start-sr", sessionKey, preRollSec, postRollSec, userCtx)
	if err != nil {
		return fmt.Errorf("pipeline: start trigger failed: %w", err)
	}
	return nil
}

// StopRecording issues the stop trigger with a reason code. The
// pipeline finalizes the artifact asynchronously.
func (p *Pipeline) StopRecording(reason int) error {
	_, err := p.src.Emit("stop-sr", uint(reason))
	if err != nil {
		return fmt.Errorf("pipeline: stop trigger failed: %w", err)
	}
	return nil
}

// StopFlow halts the media flow. Idempotent; errors are logged and
// swallowed because this runs on shutdown paths.
func (p *Pipeline) StopFlow() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	if err := p.pipeline.SetState(gst.StateNull); err != nil {
		slog.Error("pipeline: failed to stop flow", "error", err)
		return
	}
	slog.Info("pipeline: flow stopped")
}

// NegotiationState exposes the negotiator state for diagnostics.
func (p *Pipeline) NegotiationState() negotiate.State {
	return p.negotiator.State()
}

// onRecordingComplete converts the native completion payload into a
// notification. Every decode failure is best-effort: a zero field is
// reported as unavailable, never as a fault across the native boundary.
func (p *Pipeline) onRecordingComplete(infoPtr, ctxPtr unsafe.Pointer) {
	info := decodeRecordingInfo(infoPtr)

	var echo []byte
	if ctxPtr != nil && p.resolveCtx != nil {
		if b, ok := p.resolveCtx(ctxPtr); ok {
			echo = b
		} else {
			slog.Warn("pipeline: echoed context pointer not resolvable")
		}
	}

	p.notify(session.Notification{
		Kind:          session.NotifyComplete,
		Completion:    info,
		EchoedContext: echo,
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// notify delivers a notification without ever blocking a GStreamer
// thread. The channel is sized for the handful of events one session
// produces; overflow is logged and dropped.
func (p *Pipeline) notify(n session.Notification) {
	select {
	case p.notifs <- n:
	default:
		slog.Warn("pipeline: notification dropped, channel full", "kind", n.Kind)
	}
}
