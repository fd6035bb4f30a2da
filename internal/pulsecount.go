package internal

// PulseCountEngine is the alternative engine enumerated (but not fully
// specified) in §9: instead of draining nodes level by level, it counts
// pending predecessor pulses per node and enqueues a node the moment
// that count reaches zero. No level bookkeeping is needed, at the cost
// of a counter reset pass between turns.
//
// Grounded on sigv2/scheduler.go's batch-depth counters (a per-entity
// pending counter keyed off a map, decremented to trigger flush) and on
// AnatoleLucet/sig's dirtyHeap/pendingHeap split — here the "pending
// count" plays the dirtyHeap's role.
type PulseCountEngine struct {
	mode ConcurrencyMode

	queue   []*Node
	pending map[*Node]int
	queued  map[*Node]bool

	log Logger
}

func NewPulseCountEngine(mode ConcurrencyMode, log Logger) *PulseCountEngine {
	if log == nil {
		log = NoopLogger{}
	}
	return &PulseCountEngine{
		mode:    mode,
		pending: make(map[*Node]int),
		queued:  make(map[*Node]bool),
		log:     log,
	}
}

func (e *PulseCountEngine) OnNodeCreate(n *Node)  { e.log.NodeCreate(n) }
func (e *PulseCountEngine) OnNodeDestroy(n *Node) { e.log.NodeDestroy(n) }

func (e *PulseCountEngine) OnNodeAttach(child, parent *Node) { e.log.NodeAttach(child, parent) }
func (e *PulseCountEngine) OnNodeDetach(child, parent *Node) { e.log.NodeDetach(child, parent) }

func (e *PulseCountEngine) OnNodeShift(n, oldParent, newParent *Node, turn *Turn) {
	e.log.NodeShift(n, oldParent, newParent, turn)
	// Re-parenting mid-turn changes n's fan-in; the count it is waiting on
	// is recomputed the next time it is seeded, so nothing to do here
	// beyond what Attach/Detach already reported.
}

func (e *PulseCountEngine) OnTurnAdmissionStart(turn *Turn) { e.log.TurnAdmissionStart(turn) }
func (e *PulseCountEngine) OnTurnAdmissionEnd(turn *Turn)   { e.log.TurnAdmissionEnd(turn) }

func (e *PulseCountEngine) OnTurnInputChange(n *Node, turn *Turn) {
	e.enqueue(n)
}

func (e *PulseCountEngine) enqueue(n *Node) {
	if e.queued[n] {
		return
	}
	e.queued[n] = true
	e.queue = append(e.queue, n)
}

func (e *PulseCountEngine) OnNodePulse(n *Node, turn *Turn) {
	e.log.NodePulse(n, turn)
	n.AddFlag(FlagChanged)
}

func (e *PulseCountEngine) OnNodeIdlePulse(n *Node, turn *Turn) {
	e.log.NodeIdlePulse(n, turn)
}

// OnTurnPropagate drains nodes in FIFO admission order; a node that has
// predecessors becomes eligible only once every predecessor has either
// ticked this turn or was never queued (dependency_count starts each
// node's pending counter, decremented per predecessor tick).
func (e *PulseCountEngine) OnTurnPropagate(turn *Turn) {
	defer e.reset()

	graph := turn.Graph()

	for i := 0; i < len(e.queue); i++ {
		n := e.queue[i]

		if _, seeded := e.pending[n]; !seeded {
			e.pending[n] = n.DependencyCount()
		}
		if e.pending[n] > 0 {
			// Not all predecessors have reported in; push to the back and
			// retry after the rest of this pass has run.
			e.queue = append(e.queue, n)
			continue
		}

		graph.RLock()
		result := n.self.Tick(turn)
		graph.RUnlock()

		if result == Pulsed {
			e.OnNodePulse(n, turn)
			for _, s := range n.successors {
				e.pending[s] = e.decrementOrSeed(s)
				e.enqueue(s)
			}
		} else {
			e.OnNodeIdlePulse(n, turn)
		}
	}
}

func (e *PulseCountEngine) decrementOrSeed(n *Node) int {
	count, seeded := e.pending[n]
	if !seeded {
		count = n.DependencyCount()
	}
	if count > 0 {
		count--
	}
	return count
}

func (e *PulseCountEngine) reset() {
	e.queue = nil
	for k := range e.pending {
		delete(e.pending, k)
	}
	for k := range e.queued {
		delete(e.queued, k)
	}
}
