package internal

import "sync"

// TurnFlags is the admission bit set a transaction submits with.
type TurnFlags int

const (
	NoFlags TurnFlags = 0
	// AllowInputMerging lets later concurrent submissions attach their
	// input to this turn while it is still blocked in the turn manager
	// (§4.2, P7).
	AllowInputMerging TurnFlags = 1 << iota
)

// Turn is the per-propagation token threaded through every Tick call. It
// carries only id, flags and accumulation lists — no behavior of its own
// beyond bookkeeping (§4.2).
type Turn struct {
	id    uint64
	flags TurnFlags
	graph *Graph

	detachMu sync.Mutex
	detached []*ObserverNode

	continuation []func(*InputSink)
}

func newTurn(id uint64, flags TurnFlags, graph *Graph) *Turn {
	return &Turn{id: id, flags: flags, graph: graph}
}

func (t *Turn) ID() uint64 { return t.id }

// Graph returns the graph this turn is propagating through, giving a
// node's Tick implementation access to structural operations (dynamic
// re-parenting) without threading the graph through every call site.
func (t *Turn) Graph() *Graph { return t.graph }

func (t *Turn) AllowsMerging() bool { return t.flags&AllowInputMerging != 0 }

// QueueForDetach records an observer for unlinking at end-of-turn (I5).
func (t *Turn) QueueForDetach(o *ObserverNode) {
	t.detachMu.Lock()
	t.detached = append(t.detached, o)
	t.detachMu.Unlock()
}

func (t *Turn) takeDetached() []*ObserverNode {
	t.detachMu.Lock()
	defer t.detachMu.Unlock()
	out := t.detached
	t.detached = nil
	return out
}

// Continue enqueues inputFn to run as a fresh turn once this turn's
// end-of-turn cleanup has completed (§9 open question: continuations run
// strictly after deferred-detach commit).
func (t *Turn) Continue(inputFn func(*InputSink)) {
	t.continuation = append(t.continuation, inputFn)
}
