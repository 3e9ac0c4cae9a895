package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/smartrec/internal/negotiate"
)

// sourcePad adapts a dynamic gst pad to the negotiator's view.
type sourcePad struct {
	pad *gst.Pad
}

func (s sourcePad) Name() string {
	return s.pad.GetName()
}

// Geometry inspects the pad's current caps. ok is false when caps are
// not negotiated yet or carry no usable width/height, in which case the
// negotiator applies the configured default.
func (s sourcePad) Geometry() (negotiate.Geometry, bool) {
	caps := s.pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return negotiate.Geometry{}, false
	}

	st := caps.GetStructureAt(0)
	var g negotiate.Geometry

	if val, err := st.GetValue("width"); err == nil {
		if w, ok := val.(int); ok {
			g.Width = w
		}
	}
	if val, err := st.GetValue("height"); err == nil {
		if h, ok := val.(int); ok {
			g.Height = h
		}
	}

	if g.Width <= 0 || g.Height <= 0 {
		return negotiate.Geometry{}, false
	}
	return g, true
}

// muxAggregator adapts nvstreammux (plus its feeding queue) to the
// negotiator's aggregation stage.
type muxAggregator struct {
	mux   *gst.Element
	queue *gst.Element

	nextSlot int
}

// SetGeometry reconfigures the muxed frame geometry. Must happen before
// the new input is linked, otherwise frames are scaled against the
// stale geometry.
func (a *muxAggregator) SetGeometry(g negotiate.Geometry) error {
	if err := a.mux.SetProperty("width", uint(g.Width)); err != nil {
		return fmt.Errorf("pipeline: set mux width: %w", err)
	}
	if err := a.mux.SetProperty("height", uint(g.Height)); err != nil {
		return fmt.Errorf("pipeline: set mux height: %w", err)
	}
	return nil
}

// Link wires the discovered pad through the queue into the mux's next
// free request pad (sink_0, sink_1, ...).
func (a *muxAggregator) Link(sp negotiate.SourcePad) error {
	src, ok := sp.(sourcePad)
	if !ok {
		return fmt.Errorf("pipeline: foreign pad type %T", sp)
	}

	slot := fmt.Sprintf("sink_%d", a.nextSlot)
	muxPad := a.mux.GetRequestPad(slot)
	if muxPad == nil {
		return fmt.Errorf("pipeline: no %s request pad on mux", slot)
	}

	queueSink := a.queue.GetStaticPad("sink")
	if queueSink == nil {
		return fmt.Errorf("pipeline: queue has no sink pad")
	}
	if ret := src.pad.Link(queueSink); ret != gst.PadLinkOK {
		return fmt.Errorf("pipeline: link source to queue failed: %v", ret)
	}

	queueSrc := a.queue.GetStaticPad("src")
	if queueSrc == nil {
		return fmt.Errorf("pipeline: queue has no src pad")
	}
	if ret := queueSrc.Link(muxPad); ret != gst.PadLinkOK {
		return fmt.Errorf("pipeline: link queue to mux %s failed: %v", slot, ret)
	}

	a.nextSlot++
	slog.Debug("pipeline: input linked", "pad", src.Name(), "slot", slot)
	return nil
}
