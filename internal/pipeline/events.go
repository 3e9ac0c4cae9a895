package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/smartrec/internal/session"
)

// RouteBus polls the pipeline bus and converts error and end-of-stream
// messages into notifications for the orchestrator. Runs until ctx is
// cancelled; completion events arrive separately through the sr-done
// signal.
//
// Polling with a short timeout keeps shutdown responsive without a
// GLib main loop.
func (p *Pipeline) RouteBus(ctx context.Context) {
	bus := p.pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("pipeline: bus router stopped")
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			category := classifyError(gerr)
			slog.Error("pipeline: bus error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
			)
			p.notify(session.Notification{
				Kind: session.NotifyError,
				Err:  fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error()),
			})

		case gst.MessageEOS:
			slog.Info("pipeline: end of stream")
			p.notify(session.Notification{Kind: session.NotifyEOS})

		case gst.MessageStateChanged:
			if msg.Source() == p.pipeline.GetName() {
				old, next := msg.ParseStateChanged()
				slog.Debug("pipeline: state changed", "from", old, "to", next)
			}
		}
	}
}
