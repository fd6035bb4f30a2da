package internal

// SignalNode holds the current value of a signal and reports pulse/idle
// pulse on recompute (§3 "Signal node"). Value lifetime equals node
// lifetime; the engine only ever observes pulsed/idle, never the value
// itself.
//
// Grounded on AnatoleLucet/sig's internal/signal.go (pendingValue +
// Commit two-phase write) and on EventSourceNode::AddInput/ApplyInput
// from original_source/include/react/graph/EventStreamNodes.h for the
// coalescing admission protocol used by input signals.
type SignalNode struct {
	*Node

	value   any
	pending *any // non-nil once a new value has been accepted for this turn

	equal func(a, b any) bool

	// input-only fields; zero value for derived signals.
	isInput  bool
	buffer   *any
	changed  bool

	compute func(turn *Turn) (any, bool)
}

// NewInputSignal creates a settable signal node (§4.5 input stage).
func NewInputSignal(g *Graph, initial any, equal func(a, b any) bool) *SignalNode {
	s := &SignalNode{value: initial, equal: equal, isInput: true}
	s.Node = g.RegisterNode(s)
	return s
}

// NewComputedSignal creates a derived signal node whose Tick recomputes
// its value from predecessors via compute, which returns (newValue,
// changed). Tick ignores the changed result: whether the recomputed value
// counts as a pulse is decided by equal, which is == on the interface
// values unless SetEqual replaces it.
func NewComputedSignal(g *Graph, compute func(turn *Turn) (any, bool)) *SignalNode {
	s := &SignalNode{compute: compute, equal: func(a, b any) bool { return a == b }}
	s.Node = g.RegisterNode(s)
	return s
}

// SetEqual overrides the comparator used to decide whether a recompute
// pulses downstream. Exposed for the public façade, which knows T's real
// equality at the call site and the internal layer does not.
func (s *SignalNode) SetEqual(equal func(a, b any) bool) {
	s.equal = equal
}

// Value returns the committed value, or the pending value if a write
// landed earlier in the current turn but hasn't been observed via Tick
// yet (readers inside the same turn, at a strictly lower level than the
// writer, must still see it).
func (s *SignalNode) Value() any {
	if s.pending != nil {
		return *s.pending
	}
	return s.value
}

// addInput buffers v for the admission phase of the turn being built;
// applyInput later promotes it to the pending value. It is the input-node
// half of AddInput (§4.5).
func (s *SignalNode) addInput(v any) {
	if s.changed {
		s.changed = false
		s.buffer = nil
	}
	val := v
	s.buffer = &val
}

// applyInput is called during admission; it promotes a buffered write
// into the pending slot and reports whether an input change occurred.
func (s *SignalNode) applyInput(turn *Turn) bool {
	if s.buffer == nil || s.changed {
		return false
	}
	s.pending = s.buffer
	s.changed = true
	return true
}

func (s *SignalNode) node() *Node { return s.Node }

// Tick recomputes a derived signal's value. An input signal is enqueued
// via OnTurnInputChange and ticked like any other node: its Tick commits
// the value applyInput staged and pulses if that value differs from the
// previous one.
func (s *SignalNode) Tick(turn *Turn) TickResult {
	if s.isInput {
		old := s.value
		if s.pending != nil {
			s.value = *s.pending
			s.pending = nil
		}
		s.buffer = nil
		s.changed = false
		if s.equal(old, s.value) {
			return Idle
		}
		return Pulsed
	}

	old := s.Value()
	newVal, _ := s.compute(turn)
	s.value = newVal
	s.pending = nil

	if s.equal(old, s.value) {
		return Idle
	}
	return Pulsed
}

func (s *SignalNode) DependencyCount() int {
	return len(s.Node.Predecessors())
}
