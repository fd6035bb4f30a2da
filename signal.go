package pulse

import "github.com/kastelo/pulse/internal"

// Dependency is anything a Computed or EventStream can be attached to as
// a predecessor: a Signal, a Computed, or an EventStream.
type Dependency interface {
	graphNode() *internal.Node
}

// Signal is a typed, settable node holding one value at a time (§3
// "Signal node"). Equality is compared with == by default; use
// NewSignalWithEqual to supply a custom comparator for non-comparable T.
type Signal[T any] struct {
	node *internal.SignalNode
}

func newEqual[T comparable]() func(a, b any) bool {
	return func(a, b any) bool { return as[T](a) == as[T](b) }
}

// NewSignal creates a settable signal of comparable type T.
func NewSignal[T comparable](d *Domain, initial T) *Signal[T] {
	return &Signal[T]{
		node: internal.NewInputSignal(d.graph, initial, newEqual[T]()),
	}
}

// NewSignalWithEqual creates a settable signal using a custom equality
// function, for T that isn't `comparable` (slices, structs holding
// slices/maps, etc).
func NewSignalWithEqual[T any](d *Domain, initial T, equal func(a, b T) bool) *Signal[T] {
	return &Signal[T]{
		node: internal.NewInputSignal(d.graph, initial, func(a, b any) bool {
			return equal(as[T](a), as[T](b))
		}),
	}
}

// Value reads the signal's current committed value. Outside a turn this
// is the last value applied; inside a turn's propagation, predecessors
// at a lower level than the reader already reflect this turn's write.
func (s *Signal[T]) Value() T {
	return as[T](s.node.Value())
}

func (s *Signal[T]) graphNode() *internal.Node { return s.node.Node }

// Computed is a derived signal recomputed whenever any of its
// predecessors pulses.
type Computed[T any] struct {
	node *internal.SignalNode
}

// NewComputed creates a derived signal attached under every dep; compute
// is called once per turn any dep pulses, and its result is compared
// with == to decide whether the Computed itself pulses downstream.
func NewComputed[T comparable](d *Domain, deps []Dependency, compute func() T) *Computed[T] {
	return newComputed[T](d, deps, func(a, b T) bool { return a == b }, compute)
}

// NewComputedWithEqual is NewComputed for T that isn't `comparable`.
func NewComputedWithEqual[T any](d *Domain, deps []Dependency, equal func(a, b T) bool, compute func() T) *Computed[T] {
	return newComputed[T](d, deps, equal, compute)
}

func newComputed[T any](d *Domain, deps []Dependency, equal func(a, b T) bool, compute func() T) *Computed[T] {
	c := &Computed[T]{}
	c.node = internal.NewComputedSignal(d.graph, func(turn *internal.Turn) (any, bool) {
		return compute(), true
	})
	c.node.SetEqual(func(a, b any) bool { return equal(as[T](a), as[T](b)) })

	for _, dep := range deps {
		if err := d.graph.Attach(c.node.Node, dep.graphNode()); err != nil {
			panic(err)
		}
	}
	return c
}

// Value reads the computed signal's current value.
func (c *Computed[T]) Value() T {
	return as[T](c.node.Value())
}

func (c *Computed[T]) graphNode() *internal.Node { return c.node.Node }
