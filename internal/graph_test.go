package internal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panicNode is a white-box Ticker whose Tick always panics, used to drive
// §7's "propagation errors abort the turn, never the process" tests.
type panicNode struct {
	*Node
}

func newPanicNode(g *Graph) *panicNode {
	p := &panicNode{}
	p.Node = g.RegisterNode(p)
	return p
}

func (p *panicNode) Tick(turn *Turn) TickResult {
	panic("boom")
}

func (p *panicNode) DependencyCount() int {
	return len(p.Node.Predecessors())
}

// TestTurnPanicRecoversAndStillCommitsDetaches is §7: a tick panic aborts
// the turn as a *TurnError rather than crashing the process, and I5's
// deferred-detach cleanup still commits even though propagation failed.
func TestTurnPanicRecoversAndStillCommitsDetaches(t *testing.T) {
	g := newTopoGraph()

	count := NewInputSignal(g, 0, intEqual)

	detachCalls := 0
	obs, err := NewObserver(g, count.Node, func(turn *Turn) ObserverAction {
		detachCalls++
		return ObserverDetach
	})
	require.NoError(t, err)

	// panicker depends on both count and obs, so raiseLevel places it
	// strictly above obs: obs (and its self-detach request) is guaranteed
	// to run before panicker aborts the turn.
	panicker := newPanicNode(g)
	require.NoError(t, g.Attach(panicker.Node, count.Node))
	require.NoError(t, g.Attach(panicker.Node, obs.Node))

	err = g.DoTransaction(NoFlags, func(in *InputSink) {
		in.WriteSignal(count, 1)
	})

	var turnErr *TurnError
	require.ErrorAs(t, err, &turnErr)
	assert.Equal(t, 1, detachCalls)
	assert.Empty(t, obs.Node.Predecessors(), "deferred detach must still commit after a panic aborts the turn")
}

// TestTurnPanicRecoversUnderParallelConcurrent is the same scenario under
// ParallelConcurrent dispatch, where the panic originates inside an
// errgroup goroutine and must still surface as a *TurnError rather than
// crashing the test binary.
func TestTurnPanicRecoversUnderParallelConcurrent(t *testing.T) {
	g := NewGraph(NewTopoEngine(ParallelConcurrent, nil))

	count := NewInputSignal(g, 0, intEqual)

	detachCalls := 0
	obs, err := NewObserver(g, count.Node, func(turn *Turn) ObserverAction {
		detachCalls++
		return ObserverDetach
	})
	require.NoError(t, err)

	panicker := newPanicNode(g)
	require.NoError(t, g.Attach(panicker.Node, count.Node))
	require.NoError(t, g.Attach(panicker.Node, obs.Node))

	err = g.DoTransaction(NoFlags, func(in *InputSink) {
		in.WriteSignal(count, 1)
	})

	var turnErr *TurnError
	require.ErrorAs(t, err, &turnErr)
	assert.Equal(t, 1, detachCalls)
	assert.Empty(t, obs.Node.Predecessors())
}

// TestConcurrentStructuralOpRejected is I4: while one goroutine's turn is
// propagating, a structural mutation attempted from any other goroutine
// is rejected with ErrInvalidStructuralOp, rather than racing the
// in-flight turn's own reparents.
func TestConcurrentStructuralOpRejected(t *testing.T) {
	g := newTopoGraph()

	count := NewInputSignal(g, 0, intEqual)

	inTick := make(chan struct{})
	proceed := make(chan struct{})
	_, err := NewObserver(g, count.Node, func(turn *Turn) ObserverAction {
		close(inTick)
		<-proceed
		return ObserverKeep
	})
	require.NoError(t, err)

	other := NewInputSignal(g, 0, intEqual)
	sink := NewComputedSignal(g, func(turn *Turn) (any, bool) {
		return other.Value(), true
	})

	var wg sync.WaitGroup
	var txErr error
	wg.Go(func() {
		txErr = g.DoTransaction(NoFlags, func(in *InputSink) {
			in.WriteSignal(count, 1)
		})
	})

	<-inTick
	attachErr := g.Attach(sink.Node, other.Node)
	assert.ErrorIs(t, attachErr, ErrInvalidStructuralOp)

	close(proceed)
	wg.Wait()
	require.NoError(t, txErr)
}
