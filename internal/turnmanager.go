package internal

import "sync"

// blockingCondition is a one-shot gate: it starts unblocked, can be
// blocked at most meaningfully once per lifetime, and callers wait on it
// with WaitForUnblock. It mirrors BlockingCondition from
// original_source/include/react/propagation/EngineBase.h, reimplemented
// with a channel instead of a TBB condition variable.
type blockingCondition struct {
	mu      sync.Mutex
	blocked bool
	ch      chan struct{}
}

func newBlockingCondition() *blockingCondition {
	bc := &blockingCondition{ch: make(chan struct{})}
	close(bc.ch)
	return bc
}

func (b *blockingCondition) block() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.blocked {
		b.blocked = true
		b.ch = make(chan struct{})
	}
}

func (b *blockingCondition) unblock() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.blocked {
		b.blocked = false
		close(b.ch)
	}
}

func (b *blockingCondition) waitForUnblock() {
	b.mu.Lock()
	ch := b.ch
	b.mu.Unlock()
	<-ch
}

// runIfBlocked runs f and reports true only while the condition is still
// blocked, atomically with respect to unblock(). This is the mechanism
// that closes a turn's admission window: once a turn unblocks, later
// TryMerge calls against it observe blocked == false and fail, forming a
// new turn instead (§4.2).
func (b *blockingCondition) runIfBlocked(f func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.blocked {
		return false
	}
	f()
	return true
}

type mergedInput struct {
	fn     func()
	caller *blockingCondition
}

// exclusiveTurn wraps a Turn with the bookkeeping the turn manager needs:
// whether it accepts merges, its successor in submission order, and the
// set of callers that piggy-backed their input onto it.
type exclusiveTurn struct {
	turn        *Turn
	isMergeable bool

	successor *exclusiveTurn
	merged    []mergedInput
	cond      *blockingCondition
}

func newExclusiveTurn(turn *Turn) *exclusiveTurn {
	return &exclusiveTurn{
		turn:        turn,
		isMergeable: turn.AllowsMerging(),
		cond:        newBlockingCondition(),
	}
}

func (e *exclusiveTurn) append(next *exclusiveTurn) {
	next.cond.block()
	e.successor = next
}

func (e *exclusiveTurn) waitForUnblock() { e.cond.waitForUnblock() }

func (e *exclusiveTurn) runMergedInputs() {
	for _, m := range e.merged {
		m.fn()
	}
}

func (e *exclusiveTurn) unblockSuccessors() {
	for _, m := range e.merged {
		m.caller.unblock()
	}
	if e.successor != nil {
		e.successor.cond.unblock()
	}
}

func (e *exclusiveTurn) tryMerge(fn func(), caller *blockingCondition) bool {
	if !e.isMergeable {
		return false
	}
	return e.cond.runIfBlocked(func() {
		caller.block()
		e.merged = append(e.merged, mergedInput{fn: fn, caller: caller})
	})
}

// TurnManager serializes turns end-to-end in submission order and lets
// compatible pending inputs merge into the currently-queued turn (§4.2).
// It is a direct Go port of ExclusiveTurnManager from
// original_source/include/react/propagation/EngineBase.h.
type TurnManager struct {
	seqMu sync.Mutex
	tail  *exclusiveTurn
}

func NewTurnManager() *TurnManager {
	return &TurnManager{}
}

// TryMerge attempts to attach fn to the tail turn's admission window. It
// returns once fn has run as part of that turn's admission (P7).
func (m *TurnManager) TryMerge(fn func()) bool {
	caller := newBlockingCondition()

	var merged bool
	m.seqMu.Lock()
	if m.tail != nil {
		merged = m.tail.tryMerge(fn, caller)
	}
	m.seqMu.Unlock()

	if merged {
		caller.waitForUnblock()
	}
	return merged
}

// StartTurn appends et to the tail and blocks until any predecessor tail
// releases it.
func (m *TurnManager) StartTurn(et *exclusiveTurn) {
	m.seqMu.Lock()
	if m.tail != nil {
		m.tail.append(et)
	}
	m.tail = et
	m.seqMu.Unlock()

	et.waitForUnblock()
}

// EndTurn runs et's release sequence: unblock every merged caller, then
// unblock the designated successor, then clear the tail pointer if et was
// tail.
func (m *TurnManager) EndTurn(et *exclusiveTurn) {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()

	et.unblockSuccessors()

	if m.tail == et {
		m.tail = nil
	}
}
