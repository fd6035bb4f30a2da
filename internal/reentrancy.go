package internal

import (
	"sync/atomic"

	"github.com/petermattis/goid"
)

// turnGuard enforces I4 ("only the engine running the current turn may
// mutate a node's pulse state; node construction and destruction happen
// outside any turn") for the public structural API (Attach/Detach/
// DestroyNode). While a turn is propagating, only the goroutine driving
// that turn may call the public structural methods; everyone else gets
// ErrInvalidStructuralOp. The in-tick re-parent path (Graph.Reparent) is
// a separate, unguarded method precisely because it *is* the authorized
// tick callback path §7 carves out.
//
// Grounded on the goroutine-identity trick in
// AnatoleLucet/sig's internal/runtime_default.go and sig/sig.go, which
// keys a per-goroutine active-owner/runtime off
// github.com/petermattis/goid. Here the dependency serves the opposite
// purpose: that code gives every goroutine its own isolated runtime,
// which this engine cannot do (its turn manager must serialize turns
// *across* goroutines), so goid is reused instead to recognize and
// reject cross-goroutine structural interference during propagation.
type turnGuard struct {
	holder atomic.Int64 // goid of the goroutine currently propagating a turn, 0 if none
}

func (g *turnGuard) acquire() {
	g.holder.Store(goid.Get())
}

func (g *turnGuard) release() {
	g.holder.Store(0)
}

func (g *turnGuard) checkExternal() error {
	holder := g.holder.Load()
	if holder == 0 || holder == goid.Get() {
		return nil
	}
	return ErrInvalidStructuralOp
}
