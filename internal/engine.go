package internal

// Engine is the small capability set the node kernel and the graph call
// into at well-defined structural and propagation moments (§4.3).
// Engines may keep arbitrary private state between hooks; the kernel
// treats them as opaque. TopoEngine is the one fully specified
// implementation (§4.4); PulseCountEngine and SubtreeEngine are the
// two alternative engines enumerated (not fully specified) in §9.
type Engine interface {
	OnNodeCreate(n *Node)
	OnNodeDestroy(n *Node)

	OnNodeAttach(child, parent *Node)
	OnNodeDetach(child, parent *Node)
	OnNodeShift(n, oldParent, newParent *Node, turn *Turn)

	OnTurnAdmissionStart(turn *Turn)
	OnTurnAdmissionEnd(turn *Turn)
	OnTurnPropagate(turn *Turn)

	OnTurnInputChange(n *Node, turn *Turn)

	OnNodePulse(n *Node, turn *Turn)
	OnNodeIdlePulse(n *Node, turn *Turn)
}

// ConcurrencyMode selects how a turn's level batches are executed.
type ConcurrencyMode int

const (
	// SequentialConcurrent runs one turn at a time and drains each level
	// batch in the submitting thread.
	SequentialConcurrent ConcurrencyMode = iota
	// ParallelConcurrent also runs one turn at a time (turns never
	// overlap — the turn manager serializes them) but fans each level
	// batch out to a worker pool and joins before advancing.
	ParallelConcurrent
)

// EngineKind selects the concrete Engine implementation a Domain uses.
type EngineKind int

const (
	TopoSort EngineKind = iota
	PulseCount
	Subtree
)
