// Package pulse is a reactive dataflow runtime: a node graph propagated
// in atomic turns, with pluggable engines deciding propagation order.
package pulse

import "github.com/kastelo/pulse/internal"

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// ConcurrencyMode selects how a Domain dispatches a level batch: one
// node at a time, or all of them concurrently via an errgroup. Only the
// TopoSort engine reads it; PulseCount and Subtree always tick one node
// at a time.
type ConcurrencyMode = internal.ConcurrencyMode

const (
	SequentialConcurrent = internal.SequentialConcurrent
	ParallelConcurrent   = internal.ParallelConcurrent
)

// EngineKind selects the propagation engine backing a Domain.
type EngineKind = internal.EngineKind

const (
	TopoSort   = internal.TopoSort
	PulseCount = internal.PulseCount
	Subtree    = internal.Subtree
)

// TurnFlags configure how a transaction is admitted.
type TurnFlags = internal.TurnFlags

const (
	NoFlags           = internal.NoFlags
	AllowInputMerging = internal.AllowInputMerging
)

// Domain owns the graph, the turn manager and the configured engine. It
// is the unit of configuration: concurrency mode and engine kind are
// fixed for its lifetime.
type Domain struct {
	graph *internal.Graph
}

// NewDomain builds a Domain backed by the chosen engine kind and
// concurrency mode. log may be nil, in which case nothing is traced.
func NewDomain(kind EngineKind, mode ConcurrencyMode, log internal.Logger) *Domain {
	var engine internal.Engine
	switch kind {
	case internal.PulseCount:
		engine = internal.NewPulseCountEngine(mode, log)
	case internal.Subtree:
		engine = internal.NewSubtreeEngine(mode, log)
	default:
		engine = internal.NewTopoEngine(mode, log)
	}

	return &Domain{graph: internal.NewGraph(engine)}
}

// DoTransaction runs a full turn to completion: admission, propagation,
// end-of-turn cleanup, and any continuations it scheduled. It blocks
// until the turn has ended.
func (d *Domain) DoTransaction(flags TurnFlags, fn func(*InputSink)) error {
	return d.graph.DoTransaction(flags, func(in *internal.InputSink) {
		fn(&InputSink{in: in})
	})
}

// AsyncMerge tries to fold fn's inputs into the most recently queued
// turn while that turn allows merging and is still waiting behind its
// predecessor; a turn that has started running accepts no merges. If the
// merge is not possible it falls back to a fresh DoTransaction.
func (d *Domain) AsyncMerge(flags TurnFlags, fn func(*InputSink)) error {
	return d.graph.AsyncMerge(flags, func(in *internal.InputSink) {
		fn(&InputSink{in: in})
	})
}

// InputSink is the handle a transaction function writes inputs through.
type InputSink struct {
	in *internal.InputSink
}

// Set stages v as s's new value for the turn currently being admitted.
func Set[T any](sink *InputSink, s *Signal[T], v T) {
	sink.in.WriteSignal(s.node, v)
}

// Emit stages e as a new occurrence on stream for the turn currently
// being admitted.
func Emit[T any](sink *InputSink, stream *EventStream[T], e T) {
	sink.in.EmitEvent(stream.node, e)
}
