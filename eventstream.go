package pulse

import "github.com/kastelo/pulse/internal"

// EventStream is a typed node carrying a buffer of occurrences valid
// only within the turn that produced them (§3 "Event-stream node",
// I3).
type EventStream[T any] struct {
	node *internal.EventStreamNode
}

// NewEventStream creates a settable event stream.
func NewEventStream[T any](d *Domain) *EventStream[T] {
	return &EventStream[T]{node: internal.NewInputEventStream(d.graph)}
}

// Events returns this turn's buffered occurrences. Valid only when
// called from inside a tick (observer callback or derived compute) that
// is itself reacting to this stream or one of its descendants.
func (e *EventStream[T]) Events() []T {
	raw := e.node.Events()
	if raw == nil {
		return nil
	}
	out := make([]T, len(raw))
	for i, v := range raw {
		out[i] = as[T](v)
	}
	return out
}

func (e *EventStream[T]) graphNode() *internal.Node { return e.node.Node }

// MergeEvents creates a derived stream that re-emits every occurrence
// from any of sources in the same turn it occurred in. Grounded on
// EventMergeOp in original_source/include/react/graph/EventStreamNodes.h.
func MergeEvents[T any](d *Domain, sources ...*EventStream[T]) *EventStream[T] {
	out := &EventStream[T]{}
	out.node = internal.NewDerivedEventStream(d.graph, func(turn *internal.Turn) bool {
		got := false
		for _, src := range sources {
			src.node.SetCurrentTurn(turn, false, false)
			for _, v := range src.node.Events() {
				out.node.Push(v)
				got = true
			}
		}
		return got
	})
	for _, src := range sources {
		if err := d.graph.Attach(out.node.Node, src.node.Node); err != nil {
			panic(err)
		}
	}
	return out
}

// FilterEvents creates a derived stream carrying only the occurrences of
// source that satisfy pred. Grounded on EventFilterOp in
// original_source/include/react/graph/EventStreamNodes.h.
func FilterEvents[T any](d *Domain, source *EventStream[T], pred func(T) bool) *EventStream[T] {
	out := &EventStream[T]{}
	out.node = internal.NewDerivedEventStream(d.graph, func(turn *internal.Turn) bool {
		source.node.SetCurrentTurn(turn, false, false)
		got := false
		for _, v := range source.node.Events() {
			if pred(as[T](v)) {
				out.node.Push(v)
				got = true
			}
		}
		return got
	})
	if err := d.graph.Attach(out.node.Node, source.node.Node); err != nil {
		panic(err)
	}
	return out
}

// MapEvents creates a derived stream transforming every occurrence of
// source through fn. Grounded on EventTransformOp in
// original_source/include/react/graph/EventStreamNodes.h.
func MapEvents[In, Out any](d *Domain, source *EventStream[In], fn func(In) Out) *EventStream[Out] {
	out := &EventStream[Out]{}
	out.node = internal.NewDerivedEventStream(d.graph, func(turn *internal.Turn) bool {
		source.node.SetCurrentTurn(turn, false, false)
		got := false
		for _, v := range source.node.Events() {
			out.node.Push(fn(as[In](v)))
			got = true
		}
		return got
	})
	if err := d.graph.Attach(out.node.Node, source.node.Node); err != nil {
		panic(err)
	}
	return out
}
