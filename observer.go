package pulse

import "github.com/kastelo/pulse/internal"

// ObserverAction tells an Observer callback's return value whether the
// observer should keep watching or detach itself.
type ObserverAction = internal.ObserverAction

const (
	ObserverKeep   = internal.ObserverKeep
	ObserverDetach = internal.ObserverDetach
)

// Observer is a sink with no successors; it runs a user callback
// whenever the node it watches pulses. Self-detach requested from the
// callback is deferred to end-of-turn (I5, P8).
type Observer struct {
	d    *Domain
	node *internal.ObserverNode
}

// Observe attaches an observer to watch, invoking callback whenever
// watch pulses during a turn.
func Observe(d *Domain, watch Dependency, callback func() ObserverAction) (*Observer, error) {
	node, err := internal.NewObserver(d.graph, watch.graphNode(), func(turn *internal.Turn) internal.ObserverAction {
		return callback()
	})
	if err != nil {
		return nil, err
	}
	return &Observer{d: d, node: node}, nil
}

// Detach removes this observer immediately. Legal outside a turn; from
// within the observed callback, return ObserverDetach instead.
func (o *Observer) Detach() {
	internal.Detach(o.d.graph, o.node)
}
