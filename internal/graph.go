package internal

import (
	"sync"
	"sync/atomic"
)

// Graph owns every node's structure: identity, the structural
// reader-writer lock (§5 — readers are ticks, a writer is any
// attach/detach/level-bump), the turn manager and the configured engine.
// It is the concrete object behind a Domain.
type Graph struct {
	structMu   sync.RWMutex
	reparentMu sync.Mutex

	nextNodeID uint64
	nextTurnID uint64

	engine Engine
	turns  *TurnManager
	guard  turnGuard

	pendingMu sync.Mutex
	pending   []inputPort
}

// inputPort is implemented by every input-capable node adapter (signal,
// event stream) so the graph can drive the admission protocol (§4.5)
// without knowing the node's value type.
type inputPort interface {
	node() *Node
	applyInput(turn *Turn) bool
	addInput(v any)
}

func NewGraph(engine Engine) *Graph {
	return &Graph{
		engine: engine,
		turns:  NewTurnManager(),
	}
}

func (g *Graph) newNodeID() uint64 {
	return atomic.AddUint64(&g.nextNodeID, 1)
}

// RegisterNode finalizes node construction: assigns identity and fires
// OnNodeCreate. Every node kind calls this at the end of its constructor
// (§4.3: "end of node construction").
func (g *Graph) RegisterNode(self Ticker) *Node {
	n := newNode(g.newNodeID(), self)
	n.g = g
	g.engine.OnNodeCreate(n)
	return n
}

// DestroyNode tears a node down. Per I4, this is only legal outside a
// turn, or from the tick path of the node itself being destroyed.
func (g *Graph) DestroyNode(n *Node) error {
	if err := g.guard.checkExternal(); err != nil {
		return err
	}

	g.structMu.Lock()
	defer g.structMu.Unlock()

	for _, p := range n.predecessors {
		p.removeSuccessor(n)
	}
	for _, s := range n.successors {
		s.removePredecessor(n)
	}
	n.predecessors = nil
	n.successors = nil

	g.engine.OnNodeDestroy(n)
	return nil
}

// Attach establishes child -> parent (child reads parent). Legal outside
// a turn, or via the tick path for dynamic re-parenting (§4.1, P1,
// P2).
func (g *Graph) Attach(child, parent *Node) error {
	if err := g.guard.checkExternal(); err != nil {
		return err
	}

	g.structMu.Lock()
	defer g.structMu.Unlock()
	return g.attachLocked(child, parent)
}

func (g *Graph) attachLocked(child, parent *Node) error {
	if parent.isReachableFrom(child) {
		return ErrCycleDetected
	}

	child.predecessors = append(child.predecessors, parent)
	parent.successors = append(parent.successors, child)
	raiseLevel(child, parent.level)

	g.engine.OnNodeAttach(child, parent)
	return nil
}

// Detach removes the child -> parent edge.
func (g *Graph) Detach(child, parent *Node) error {
	if err := g.guard.checkExternal(); err != nil {
		return err
	}

	g.structMu.Lock()
	defer g.structMu.Unlock()
	g.detachLocked(child, parent)
	return nil
}

func (g *Graph) detachLocked(child, parent *Node) {
	child.removePredecessor(parent)
	parent.removeSuccessor(child)
	g.engine.OnNodeDetach(child, parent)
}

// Reparent implements dynamic edge re-parenting performed from within a
// node's own Tick (§4.4 "Dynamic edges"). The calling goroutine
// already holds the structural lock's *read* side for the duration of
// its tick (runBatch), so Reparent cannot also take structMu's write
// side without deadlocking itself; it is the one authorized in-tick
// structural mutation, so it instead serializes only against other
// nodes reparenting concurrently within the same parallel batch, via a
// dedicated mutex.
func (g *Graph) Reparent(n, oldParent, newParent *Node, turn *Turn) error {
	g.reparentMu.Lock()
	if oldParent != nil {
		g.detachLocked(n, oldParent)
	}
	if err := g.attachLocked(n, newParent); err != nil {
		g.reparentMu.Unlock()
		return err
	}
	g.reparentMu.Unlock()

	g.engine.OnNodeShift(n, oldParent, newParent, turn)
	return nil
}

// RLock/RUnlock expose the structural lock's reader side to the engine,
// which holds it around each node's tick (no lock is held across user
// callbacks beyond the tick itself — §9).
func (g *Graph) RLock()   { g.structMu.RLock() }
func (g *Graph) RUnlock() { g.structMu.RUnlock() }

func (n *Node) removePredecessor(p *Node) {
	for i, x := range n.predecessors {
		if x == p {
			n.predecessors = append(n.predecessors[:i], n.predecessors[i+1:]...)
			return
		}
	}
}

func (n *Node) removeSuccessor(s *Node) {
	for i, x := range n.successors {
		if x == s {
			n.successors = append(n.successors[:i], n.successors[i+1:]...)
			return
		}
	}
}

// markPending registers an input-capable node as having buffered data
// since the last admission drain (§4.5). Idempotent per turn cycle.
func (g *Graph) markPending(p inputPort) {
	n := p.node()

	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()

	if n.pendingInput {
		return
	}
	n.pendingInput = true
	g.pending = append(g.pending, p)
}

func (g *Graph) drainPending() []inputPort {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()

	out := g.pending
	g.pending = nil
	for _, p := range out {
		p.node().pendingInput = false
	}
	return out
}

// InputSink is the handle a transaction function mutates input nodes
// through (§6 Transaction API).
type InputSink struct {
	graph *Graph
}

func (in *InputSink) add(p inputPort, v any) {
	p.addInput(v)
	in.graph.markPending(p)
}

// WriteSignal buffers v onto an input signal for this turn's admission
// phase. Exported so the public façade package, which only holds
// *SignalNode/*EventStreamNode pointers (not the unexported inputPort
// interface), can drive admission without reaching into graph internals.
func (in *InputSink) WriteSignal(s *SignalNode, v any) { in.add(s, v) }

// EmitEvent buffers v onto an input event stream for this turn's
// admission phase.
func (in *InputSink) EmitEvent(e *EventStreamNode, v any) { in.add(e, v) }

// DoTransaction runs a full turn: admission, propagation, end-of-turn
// cleanup. It blocks until the turn has ended and returns any turn
// failure (§6, §7).
func (g *Graph) DoTransaction(flags TurnFlags, fn func(*InputSink)) error {
	turn := newTurn(atomic.AddUint64(&g.nextTurnID, 1), flags, g)
	et := newExclusiveTurn(turn)

	g.turns.StartTurn(et)

	sink := &InputSink{graph: g}

	g.engine.OnTurnAdmissionStart(turn)
	fn(sink)
	et.runMergedInputs()

	for _, p := range g.drainPending() {
		if p.applyInput(turn) {
			g.engine.OnTurnInputChange(p.node(), turn)
		}
	}
	g.engine.OnTurnAdmissionEnd(turn)

	err := g.runPropagation(turn)

	g.commitDetaches(turn)
	g.turns.EndTurn(et)

	for _, cont := range turn.continuation {
		if cerr := g.DoTransaction(flags, cont); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

func (g *Graph) runPropagation(turn *Turn) (err error) {
	g.guard.acquire()
	defer g.guard.release()

	defer func() {
		if r := recover(); r != nil {
			err = &TurnError{TurnID: turn.ID(), Cause: r}
		}
	}()

	g.engine.OnTurnPropagate(turn)
	return nil
}

// commitDetaches runs I5's deferred-unlink step: structural removal of
// observers recorded during the turn is committed here, when no ticks
// are in flight.
func (g *Graph) commitDetaches(turn *Turn) {
	detached := turn.takeDetached()
	if len(detached) == 0 {
		return
	}

	g.structMu.Lock()
	defer g.structMu.Unlock()

	for _, o := range detached {
		for _, p := range o.Node.predecessors {
			p.removeSuccessor(o.Node)
		}
		o.Node.predecessors = nil
	}
}

// AsyncMerge attempts to attach fn's input to the currently-queued turn
// (if one exists, is still blocked, and allows merging); if that fails it
// falls back to a plain DoTransaction (§6, P7, scenario 3).
func (g *Graph) AsyncMerge(flags TurnFlags, fn func(*InputSink)) error {
	sink := &InputSink{graph: g}

	merged := g.turns.TryMerge(func() { fn(sink) })
	if merged {
		return nil
	}

	return g.DoTransaction(flags, fn)
}
