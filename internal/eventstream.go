package internal

import "sync"

// EventStreamNode holds a buffer of events valid only within the current
// turn (I3). Ported from EventStreamNode/EventSourceNode in
// original_source/include/react/graph/EventStreamNodes.h: SetCurrentTurn
// is idempotent under the same turn id unless forceUpdate is set, and
// clears the buffer unless noClear is set, because downstream combinators
// may read the same source multiple times within one turn.
type EventStreamNode struct {
	*Node

	mu        sync.Mutex
	events    []any
	curTurnID uint64
	hasTurn   bool

	isInput bool
	changed bool

	// compute populates the buffer for a derived event node (merge,
	// filter, transform); it returns true if anything was collected.
	compute func(turn *Turn) bool
}

// NewInputEventStream creates a settable event-stream node.
func NewInputEventStream(g *Graph) *EventStreamNode {
	e := &EventStreamNode{isInput: true}
	e.Node = g.RegisterNode(e)
	return e
}

// NewDerivedEventStream creates an operator event node (merge/filter/map)
// whose Tick recomputes its buffer via compute (§1's "algebra of
// operator nodes" — implemented in the public package on top of this
// adapter, since the engine itself only needs the Events()/SetCurrentTurn
// contract).
func NewDerivedEventStream(g *Graph, compute func(turn *Turn) bool) *EventStreamNode {
	e := &EventStreamNode{compute: compute}
	e.Node = g.RegisterNode(e)
	return e
}

// SetCurrentTurn replaces the stored turn id and clears the buffer,
// exactly once per (turn, node) pair unless forceUpdate forces a
// re-evaluation or noClear suppresses the clear.
func (e *EventStreamNode) SetCurrentTurn(turn *Turn, forceUpdate, noClear bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasTurn || e.curTurnID != turn.ID() || forceUpdate {
		e.hasTurn = true
		e.curTurnID = turn.ID()
		if !noClear {
			e.events = nil
		}
	}
}

// Events returns the in-turn buffer. Callers must have already called
// SetCurrentTurn for the current turn.
func (e *EventStreamNode) Events() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

// Push appends v to this turn's buffer. Used by derived-stream compute
// functions (merge/filter/map, implemented in the public façade) to
// collect their output during Tick.
func (e *EventStreamNode) Push(v any) {
	e.mu.Lock()
	e.events = append(e.events, v)
	e.mu.Unlock()
}

func (e *EventStreamNode) node() *Node { return e.Node }

func (e *EventStreamNode) addInput(v any) {
	if e.changed {
		e.changed = false
		e.events = nil
	}
	e.events = append(e.events, v)
}

func (e *EventStreamNode) applyInput(turn *Turn) bool {
	if len(e.events) == 0 || e.changed {
		return false
	}
	e.SetCurrentTurn(turn, true, true)
	e.changed = true
	return true
}

func (e *EventStreamNode) Tick(turn *Turn) TickResult {
	if e.isInput {
		// Buffer was already staged by applyInput during admission.
		// changed stays true until the next addInput call, which is
		// what tells addInput to clear the stale buffer before
		// appending a fresh occurrence (mirrors EventSourceNode's
		// AddInput/ApplyInput split).
		if len(e.events) == 0 {
			return Idle
		}
		return Pulsed
	}

	e.SetCurrentTurn(turn, true, false)
	if e.compute(turn) {
		return Pulsed
	}
	return Idle
}

func (e *EventStreamNode) DependencyCount() int {
	return len(e.Node.Predecessors())
}
