// Package negotiate reacts to dynamic output discovery on the live
// source: when the pipeline announces a new output pad, the negotiator
// inspects the discovered stream geometry, reconfigures the aggregation
// stage to match, and links the pad into the aggregation stage's next
// free input slot.
//
// The state machine is pure; the GStreamer-facing adapters implementing
// SourcePad and Aggregator live in the pipeline package.
package negotiate

import (
	"log/slog"
)

// Geometry is the discovered width/height of the live input, known only
// once the first real data has negotiated caps.
type Geometry struct {
	Width  int
	Height int
}

// IsZero reports whether no geometry has been discovered.
func (g Geometry) IsZero() bool {
	return g.Width == 0 && g.Height == 0
}

// State tracks negotiation progress for the aggregation stage.
type State int

const (
	// Unbound means no output pad has been discovered yet.
	Unbound State = iota
	// Negotiating means a pad was discovered but is not linked yet,
	// either mid-handling or after a configure/link failure.
	Negotiating
	// Bound means the live stream is linked into the aggregation stage.
	Bound
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Negotiating:
		return "negotiating"
	case Bound:
		return "bound"
	default:
		return "unknown"
	}
}

// SourcePad is a discovered output pad on the live source.
type SourcePad interface {
	// Name identifies the pad for logging.
	Name() string
	// Geometry returns the pad's current caps geometry. ok is false
	// when caps are unavailable or carry no usable width/height.
	Geometry() (Geometry, bool)
}

// Aggregator is the downstream aggregation stage being configured and
// linked at negotiation time.
type Aggregator interface {
	// SetGeometry reconfigures the stage's expected frame geometry.
	SetGeometry(Geometry) error
	// Link wires the discovered pad into the stage's next free input
	// slot.
	Link(SourcePad) error
}

// Negotiator drives Unbound → Negotiating → Bound for one aggregation
// stage. It is not safe for concurrent use; discovery events are
// expected to arrive serialized (GStreamer delivers pad-added signals
// one at a time per element).
type Negotiator struct {
	agg      Aggregator
	fallback Geometry

	state State
	geom  Geometry
}

// New creates a negotiator with the statically configured fallback
// geometry used when caps are absent or unparsable.
func New(agg Aggregator, fallback Geometry) *Negotiator {
	return &Negotiator{
		agg:      agg,
		fallback: fallback,
		state:    Unbound,
	}
}

// State returns the current negotiation state.
func (n *Negotiator) State() State {
	return n.state
}

// Geometry returns the geometry last applied to the aggregation stage.
func (n *Negotiator) Geometry() Geometry {
	return n.geom
}

// OnPadDiscovered handles one output-discovery event. Configure or link
// failures are logged and leave the negotiator in Negotiating with no
// automatic retry; a later discovery event is handled independently.
func (n *Negotiator) OnPadDiscovered(pad SourcePad) {
	n.state = Negotiating

	geom, ok := pad.Geometry()
	if !ok || geom.IsZero() {
		// Caps unavailable at discovery time: proceed with the static
		// default rather than blocking the flow.
		geom = n.fallback
		slog.Info("negotiate: caps unavailable, using default geometry",
			"pad", pad.Name(),
			"width", geom.Width,
			"height", geom.Height,
		)
	} else {
		slog.Info("negotiate: discovered stream geometry",
			"pad", pad.Name(),
			"width", geom.Width,
			"height", geom.Height,
		)
	}

	if err := n.agg.SetGeometry(geom); err != nil {
		slog.Error("negotiate: failed to configure aggregation stage",
			"pad", pad.Name(),
			"width", geom.Width,
			"height", geom.Height,
			"error", err,
		)
		return
	}
	n.geom = geom

	if err := n.agg.Link(pad); err != nil {
		slog.Error("negotiate: failed to link pad into aggregation stage",
			"pad", pad.Name(),
			"error", err,
		)
		return
	}

	n.state = Bound
	slog.Info("negotiate: stream bound to aggregation stage",
		"pad", pad.Name(),
		"width", geom.Width,
		"height", geom.Height,
	)
}
