package internal

// ObserverAction is what a user callback returns to tell the observer
// whether to keep watching or detach itself.
type ObserverAction int

const (
	ObserverKeep ObserverAction = iota
	ObserverDetach
)

// ObserverNode is a sink with no successors; its Tick invokes the user
// callback on predecessor pulses. Self-detach requested during Tick is
// deferred to end-of-turn under I5 (§4.7, P8).
type ObserverNode struct {
	*Node

	callback func(turn *Turn) ObserverAction
}

// NewObserver attaches an observer to watch, calling callback whenever
// watch pulses during a turn.
func NewObserver(g *Graph, watch *Node, callback func(turn *Turn) ObserverAction) (*ObserverNode, error) {
	o := &ObserverNode{callback: callback}
	o.Node = g.RegisterNode(o)

	if err := g.Attach(o.Node, watch); err != nil {
		g.DestroyNode(o.Node)
		return nil, err
	}
	return o, nil
}

func (o *ObserverNode) Tick(turn *Turn) TickResult {
	if o.callback(turn) == ObserverDetach {
		turn.QueueForDetach(o)
	}
	// Observers have no successors to notify; they never "pulse" in the
	// propagation sense, but reporting Idle keeps the engine's
	// at-most-once-per-level accounting simple.
	return Idle
}

func (o *ObserverNode) DependencyCount() int {
	return len(o.Node.Predecessors())
}

// Detach requests immediate (outside-a-turn) removal of this observer.
func Detach(g *Graph, o *ObserverNode) {
	preds := append([]*Node(nil), o.Node.Predecessors()...)
	for _, p := range preds {
		g.Detach(o.Node, p)
	}
}
