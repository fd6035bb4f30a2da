package internal

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TopoEngine is the topological-sort engine described in full in
// §4.4: a ready set keyed by node level, drained level-by-level to a
// fixed point. Same-level batches are independent by I2, so they may run
// concurrently in ParallelConcurrent mode (grounded on grailbio-reflow's
// errgroup-based fan-out/join in flow/eval.go).
type TopoEngine struct {
	mode ConcurrencyMode

	// readyMu guards ready/ticked/inFlight/requeued. OnTurnPropagate's own
	// goroutine never contends for it, except when ParallelConcurrent
	// dispatches several nodes from the same level batch at once and more
	// than one of them reparents (OnNodeShift) concurrently.
	readyMu sync.Mutex
	ready   *levelSet

	// ticked tracks nodes already drained in the current turn, so an
	// in-tick OnNodeShift can tell whether the node needs re-queuing at
	// its new level (§4.4 "Dynamic edges").
	ticked map[*Node]bool

	// inFlight marks every node in the batch currently being ticked by
	// runBatch, for the duration of that call. A node reparenting itself
	// (or another node) while that node is inFlight has not finished its
	// current Tick yet, so it cannot simply be found in ticked (not set
	// until the batch completes) or in ready (already drained to build
	// this batch) — OnNodeShift consults inFlight to catch exactly this
	// window.
	inFlight map[*Node]bool

	// requeued marks a node whose OnNodeShift fired while it was
	// inFlight: its current Tick result reflects a stale read of the new
	// parent (which has not ticked this turn yet, since re-parenting onto
	// it raised the child's own level past it) and must be discarded; the
	// node has already been re-enqueued at its raised level.
	requeued map[*Node]bool

	log Logger
}

func NewTopoEngine(mode ConcurrencyMode, log Logger) *TopoEngine {
	if log == nil {
		log = NoopLogger{}
	}
	return &TopoEngine{
		mode:     mode,
		ready:    newLevelSet(),
		ticked:   make(map[*Node]bool),
		inFlight: make(map[*Node]bool),
		requeued: make(map[*Node]bool),
		log:      log,
	}
}

func (e *TopoEngine) OnNodeCreate(n *Node)  { e.log.NodeCreate(n) }
func (e *TopoEngine) OnNodeDestroy(n *Node) { e.log.NodeDestroy(n) }

func (e *TopoEngine) OnNodeAttach(child, parent *Node) { e.log.NodeAttach(child, parent) }
func (e *TopoEngine) OnNodeDetach(child, parent *Node) { e.log.NodeDetach(child, parent) }

// OnNodeShift implements the engine's side of dynamic re-parenting.
// Three cases, checked in order of how "fresh" the node's drained state
// is:
//
//  1. n is mid-Tick right now (inFlight): its level was just raised past
//     a predecessor that hasn't ticked this turn, so the value it is
//     about to return is stale. Re-queue it at its new level and mark it
//     for discard; runBatch will skip its result. An in-flight node whose
//     level stayed at the batch's level keeps its result: its new parent
//     sits at a lower level and is already settled for this turn.
//  2. n already finished ticking this turn (ticked): clear that marker
//     and re-queue it at the new level so it ticks again downstream of
//     its new parent.
//  3. n is merely sitting in the ready set awaiting its turn: move it to
//     its new bucket.
//
// Otherwise it will simply be enqueued normally once a predecessor
// pulses.
func (e *TopoEngine) OnNodeShift(n, oldParent, newParent *Node, turn *Turn) {
	e.log.NodeShift(n, oldParent, newParent, turn)

	e.readyMu.Lock()
	defer e.readyMu.Unlock()

	// DrainLevel has already advanced ready.min past the batch's level, so
	// n.level >= ready.min holds exactly when the re-parent raised n.
	if e.inFlight[n] && n.level >= e.ready.min {
		n.AddFlag(FlagQueued)
		e.ready.Insert(n)
		e.requeued[n] = true
		return
	}

	if e.ticked[n] {
		delete(e.ticked, n)
		n.AddFlag(FlagQueued)
		e.ready.Insert(n)
		return
	}

	if e.ready.Contains(n) {
		e.ready.Remove(n)
		e.ready.Insert(n)
	}
}

func (e *TopoEngine) OnTurnAdmissionStart(turn *Turn) { e.log.TurnAdmissionStart(turn) }
func (e *TopoEngine) OnTurnAdmissionEnd(turn *Turn)   { e.log.TurnAdmissionEnd(turn) }

// OnTurnInputChange enqueues an input node at its level, exactly as any
// other pulsed node would be (§4.4 "Input stage").
func (e *TopoEngine) OnTurnInputChange(n *Node, turn *Turn) {
	e.enqueue(n)
}

func (e *TopoEngine) enqueue(n *Node) {
	if n.HasFlag(FlagQueued) {
		return
	}
	n.AddFlag(FlagQueued)
	e.ready.Insert(n)
}

func (e *TopoEngine) OnNodePulse(n *Node, turn *Turn) {
	e.log.NodePulse(n, turn)
	n.AddFlag(FlagChanged)
}

func (e *TopoEngine) OnNodeIdlePulse(n *Node, turn *Turn) {
	e.log.NodeIdlePulse(n, turn)
}

// OnTurnPropagate runs the ready set to a fixed point (§4.4
// "Propagation loop").
func (e *TopoEngine) OnTurnPropagate(turn *Turn) {
	defer e.ready.Reset()
	clear(e.ticked)
	clear(e.inFlight)
	clear(e.requeued)

	graph := turn.Graph()

	for {
		batch := e.ready.DrainLevel()
		if batch == nil {
			break
		}

		for _, n := range batch {
			n.RemoveFlag(FlagQueued)
		}

		pulsed := e.runBatch(graph, batch, turn)

		for _, n := range pulsed {
			for _, s := range n.successors {
				e.enqueue(s)
			}
		}
	}
}

// tickNode runs one node's Tick under the structural read lock. The
// deferred RUnlock still fires if Tick panics, so a panicking tick never
// leaves the graph's structural lock stuck held.
func tickNode(graph *Graph, n *Node, turn *Turn) TickResult {
	graph.RLock()
	defer graph.RUnlock()
	return n.self.Tick(turn)
}

func (e *TopoEngine) markInFlight(batch []*Node) {
	e.readyMu.Lock()
	for _, n := range batch {
		e.inFlight[n] = true
	}
	e.readyMu.Unlock()
}

func (e *TopoEngine) clearInFlight(batch []*Node) {
	e.readyMu.Lock()
	for _, n := range batch {
		delete(e.inFlight, n)
	}
	e.readyMu.Unlock()
}

func (e *TopoEngine) takeRequeued(n *Node) bool {
	e.readyMu.Lock()
	defer e.readyMu.Unlock()
	if e.requeued[n] {
		delete(e.requeued, n)
		return true
	}
	return false
}

func (e *TopoEngine) runBatch(graph *Graph, batch []*Node, turn *Turn) []*Node {
	results := make([]TickResult, len(batch))

	e.markInFlight(batch)
	defer e.clearInFlight(batch)

	switch e.mode {
	case ParallelConcurrent:
		g, _ := errgroup.WithContext(context.Background())

		var panicMu sync.Mutex
		var panicVal any

		for i, n := range batch {
			i, n := i, n
			g.Go(func() (err error) {
				// errgroup does not catch panics — an unrecovered one
				// here would take the whole process down instead of
				// just failing this turn. Recover it, stash it, and
				// re-panic from the controlling goroutine once every
				// node in the batch has finished, so the existing
				// recover in Graph.runPropagation turns it into a
				// TurnError exactly as the sequential path does.
				defer func() {
					if r := recover(); r != nil {
						panicMu.Lock()
						if panicVal == nil {
							panicVal = r
						}
						panicMu.Unlock()
					}
				}()
				results[i] = tickNode(graph, n, turn)
				return nil
			})
		}
		_ = g.Wait()

		if panicVal != nil {
			panic(panicVal)
		}
	default: // SequentialConcurrent
		for i, n := range batch {
			results[i] = tickNode(graph, n, turn)
		}
	}

	var pulsed []*Node
	for i, n := range batch {
		if e.takeRequeued(n) {
			continue
		}

		e.readyMu.Lock()
		e.ticked[n] = true
		e.readyMu.Unlock()

		if results[i] == Pulsed {
			e.OnNodePulse(n, turn)
			pulsed = append(pulsed, n)
		} else {
			e.OnNodeIdlePulse(n, turn)
		}
	}
	return pulsed
}
