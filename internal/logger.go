package internal

import "log/slog"

// Logger receives engine hook firings for debugging/tracing. It mirrors
// §4.3's hook table; a Domain defaults to NoopLogger since there is no
// wire/CLI surface here to justify an always-on structured logger.
type Logger interface {
	NodeCreate(n *Node)
	NodeDestroy(n *Node)
	NodeAttach(child, parent *Node)
	NodeDetach(child, parent *Node)
	NodeShift(n, oldParent, newParent *Node, turn *Turn)
	TurnAdmissionStart(turn *Turn)
	TurnAdmissionEnd(turn *Turn)
	NodePulse(n *Node, turn *Turn)
	NodeIdlePulse(n *Node, turn *Turn)
}

type NoopLogger struct{}

func (NoopLogger) NodeCreate(*Node)                              {}
func (NoopLogger) NodeDestroy(*Node)                              {}
func (NoopLogger) NodeAttach(*Node, *Node)                        {}
func (NoopLogger) NodeDetach(*Node, *Node)                        {}
func (NoopLogger) NodeShift(*Node, *Node, *Node, *Turn)           {}
func (NoopLogger) TurnAdmissionStart(*Turn)                       {}
func (NoopLogger) TurnAdmissionEnd(*Turn)                         {}
func (NoopLogger) NodePulse(*Node, *Turn)                         {}
func (NoopLogger) NodeIdlePulse(*Node, *Turn)                     {}

// SlogLogger traces engine activity through the standard structured
// logger. Useful while developing a new node kind or diagnosing a stuck
// turn; not wired in by default.
type SlogLogger struct {
	Log *slog.Logger
}

func (l SlogLogger) NodeCreate(n *Node) {
	l.Log.Debug("node create", "node", n.ID())
}

func (l SlogLogger) NodeDestroy(n *Node) {
	l.Log.Debug("node destroy", "node", n.ID())
}

func (l SlogLogger) NodeAttach(child, parent *Node) {
	l.Log.Debug("node attach", "child", child.ID(), "parent", parent.ID())
}

func (l SlogLogger) NodeDetach(child, parent *Node) {
	l.Log.Debug("node detach", "child", child.ID(), "parent", parent.ID())
}

func (l SlogLogger) NodeShift(n, oldParent, newParent *Node, turn *Turn) {
	l.Log.Debug("node shift", "node", n.ID(), "old_parent", oldParent, "new_parent", newParent.ID(), "turn", turn.ID())
}

func (l SlogLogger) TurnAdmissionStart(turn *Turn) {
	l.Log.Debug("turn admission start", "turn", turn.ID())
}

func (l SlogLogger) TurnAdmissionEnd(turn *Turn) {
	l.Log.Debug("turn admission end", "turn", turn.ID())
}

func (l SlogLogger) NodePulse(n *Node, turn *Turn) {
	l.Log.Debug("node pulse", "node", n.ID(), "turn", turn.ID())
}

func (l SlogLogger) NodeIdlePulse(n *Node, turn *Turn) {
	l.Log.Debug("node idle pulse", "node", n.ID(), "turn", turn.ID())
}
