package internal

import "sort"

// SubtreeEngine is the alternative engine enumerated (but not fully
// specified) in §9: propagation is confined to a marked subgraph rooted
// at the nodes an input touched, rather than a global level-ordered
// sweep. Useful when a turn only ever disturbs a small, known region of
// a much larger graph.
//
// Grounded on sigv3/runtime.go's dirty-marking pass (a node is only
// revisited if something reachable from it was actually written) and on
// AnatoleLucet/sig's scheduler.Schedule/commit split for staging
// pending writes before a flush.
type SubtreeEngine struct {
	mode ConcurrencyMode

	marked map[*Node]bool
	order  []*Node

	log Logger
}

func NewSubtreeEngine(mode ConcurrencyMode, log Logger) *SubtreeEngine {
	if log == nil {
		log = NoopLogger{}
	}
	return &SubtreeEngine{
		mode:   mode,
		marked: make(map[*Node]bool),
		log:    log,
	}
}

func (e *SubtreeEngine) OnNodeCreate(n *Node)  { e.log.NodeCreate(n) }
func (e *SubtreeEngine) OnNodeDestroy(n *Node) { e.log.NodeDestroy(n) }

func (e *SubtreeEngine) OnNodeAttach(child, parent *Node) { e.log.NodeAttach(child, parent) }
func (e *SubtreeEngine) OnNodeDetach(child, parent *Node) { e.log.NodeDetach(child, parent) }

func (e *SubtreeEngine) OnNodeShift(n, oldParent, newParent *Node, turn *Turn) {
	e.log.NodeShift(n, oldParent, newParent, turn)
	e.mark(n)
}

func (e *SubtreeEngine) OnTurnAdmissionStart(turn *Turn) { e.log.TurnAdmissionStart(turn) }
func (e *SubtreeEngine) OnTurnAdmissionEnd(turn *Turn)   { e.log.TurnAdmissionEnd(turn) }

func (e *SubtreeEngine) OnTurnInputChange(n *Node, turn *Turn) {
	e.mark(n)
}

// mark flags n and every descendant reachable through successor edges as
// part of the subtree this turn must visit.
func (e *SubtreeEngine) mark(n *Node) {
	if e.marked[n] {
		return
	}
	e.marked[n] = true
	e.order = append(e.order, n)
	for _, s := range n.successors {
		e.mark(s)
	}
}

func (e *SubtreeEngine) OnNodePulse(n *Node, turn *Turn) {
	e.log.NodePulse(n, turn)
	n.AddFlag(FlagChanged)
}

func (e *SubtreeEngine) OnNodeIdlePulse(n *Node, turn *Turn) {
	e.log.NodeIdlePulse(n, turn)
}

// OnTurnPropagate visits the marked subtree in ascending level order
// (discovery order among nodes of equal level), which by I2 ticks every
// marked predecessor before its successors.
func (e *SubtreeEngine) OnTurnPropagate(turn *Turn) {
	defer e.reset()

	graph := turn.Graph()

	sort.SliceStable(e.order, func(i, j int) bool { return e.order[i].level < e.order[j].level })

	for _, n := range e.order {
		graph.RLock()
		result := n.self.Tick(turn)
		graph.RUnlock()

		if result == Pulsed {
			e.OnNodePulse(n, turn)
		} else {
			e.OnNodeIdlePulse(n, turn)
		}
	}
}

func (e *SubtreeEngine) reset() {
	e.order = nil
	for k := range e.marked {
		delete(e.marked, k)
	}
}
