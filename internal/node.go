package internal

// NodeFlags are engine-private marker bits on a Node.
type NodeFlags int

const (
	FlagNone NodeFlags = 0
	// FlagQueued marks a node currently sitting in the engine's ready set.
	FlagQueued NodeFlags = 1 << iota
	// FlagMarked is a scratch bit reserved for engine traversals; none of
	// the engines in this package sets or reads it.
	FlagMarked
	// FlagChanged is set on a node each time it pulses. No engine clears
	// it, so it records that the node has pulsed in some turn, not
	// necessarily the current one.
	FlagChanged
)

// TickResult is what a node reports to the engine after Tick runs.
type TickResult int

const (
	// Idle means the node recomputed but its observable value or event
	// buffer did not change; successors are not enqueued.
	Idle TickResult = iota
	// Pulsed means the node produced a change; successors are enqueued.
	Pulsed
)

// Ticker is implemented by every node kind the engine drives.
type Ticker interface {
	Tick(turn *Turn) TickResult
	DependencyCount() int
}

// Node is the base type embedded by every node kind (signal, event
// stream, observer). It owns identity, adjacency and the level
// invariant (I2): level(child) > level(parent) for every edge.
type Node struct {
	id    uint64
	level int
	flags NodeFlags

	predecessors []*Node
	successors   []*Node

	self Ticker // the concrete node embedding this Node, for Tick dispatch
	g    *Graph

	pendingInput bool // guarded by g.pendingMu
}

func newNode(id uint64, self Ticker) *Node {
	return &Node{id: id, self: self}
}

func (n *Node) Graph() *Graph         { return n.g }
func (n *Node) ID() uint64           { return n.id }
func (n *Node) Level() int           { return n.level }
func (n *Node) Self() Ticker         { return n.self }
func (n *Node) Predecessors() []*Node { return n.predecessors }
func (n *Node) Successors() []*Node   { return n.successors }

func (n *Node) HasFlag(f NodeFlags) bool { return n.flags&f != 0 }
func (n *Node) AddFlag(f NodeFlags)      { n.flags |= f }
func (n *Node) RemoveFlag(f NodeFlags)   { n.flags &^= f }
func (n *Node) SetFlags(f NodeFlags)     { n.flags = f }

// isReachableFrom reports whether target is reachable from n by walking
// predecessors, i.e. whether attaching target as a child of n (target
// reading n) would close a cycle.
func (n *Node) isReachableFrom(target *Node) bool {
	if n == target {
		return true
	}
	visited := map[*Node]bool{n: true}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range cur.predecessors {
			if p == target {
				return true
			}
			if !visited[p] {
				visited[p] = true
				stack = append(stack, p)
			}
		}
	}
	return false
}

// raiseLevel bumps n's level to at least minLevel+1 and propagates the
// rise breadth-first to every reachable successor, preserving I2.
func raiseLevel(n *Node, minLevel int) {
	if n.level > minLevel {
		return
	}
	queue := []*Node{n}
	n.level = minLevel + 1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range cur.successors {
			if s.level <= cur.level {
				s.level = cur.level + 1
				queue = append(queue, s)
			}
		}
	}
}

// DependencyCount returns the static fan-in for operator nodes, 0 for
// inputs; it simply forwards to the concrete node's implementation.
func (n *Node) DependencyCount() int {
	if n.self == nil {
		return 0
	}
	return n.self.DependencyCount()
}
