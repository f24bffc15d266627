// Package policy enforces hardcore-mode restrictions on emulator control
// actions. Save states, rewind, and speed manipulation make competitive
// achievement hunting trivially exploitable, so they are gated centrally
// here instead of scattering hardcore checks through every input handler.
package policy

import "sync"

// Action identifies an emulator control action subject to gating.
type Action int

const (
	ActionSaveState Action = iota + 1
	ActionLoadState
	ActionRewind
	ActionFastForward
)

// String returns the display name of the action.
func (a Action) String() string {
	switch a {
	case ActionSaveState:
		return "save state"
	case ActionLoadState:
		return "load state"
	case ActionRewind:
		return "rewind"
	case ActionFastForward:
		return "fast forward"
	default:
		return "unknown"
	}
}

const (
	reasonSaveState   = "Save states are disabled in Hardcore mode"
	reasonLoadState   = "Loading states is disabled in Hardcore mode"
	reasonRewind      = "Rewind is disabled in Hardcore mode"
	reasonFastForward = "Fast forward is disabled in Hardcore mode"
)

// Gate answers whether a control action is currently allowed. It is
// activated once per session and deactivated on exit; CheckAction sits on
// the hot path of every save/rewind/speed input and is a lock, two field
// reads, and a branch.
type Gate struct {
	mu       sync.Mutex
	active   bool
	hardcore bool
}

// NewGate returns an inactive gate. All actions are allowed until
// Activate is called with hardcore set.
func NewGate() *Gate {
	return &Gate{}
}

// Activate marks a session active with the given hardcore flag.
func (g *Gate) Activate(hardcore bool) {
	g.mu.Lock()
	g.active = true
	g.hardcore = hardcore
	g.mu.Unlock()
}

// Deactivate resets the gate to inactive regardless of prior state.
// Safe to call when never activated.
func (g *Gate) Deactivate() {
	g.mu.Lock()
	g.active = false
	g.hardcore = false
	g.mu.Unlock()
}

// Active reports whether a session is currently active.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Hardcore reports whether the active session is in hardcore mode.
func (g *Gate) Hardcore() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active && g.hardcore
}

// CheckAction returns a block reason for the action, or "" when the
// action is allowed. Actions are only blocked while a hardcore session
// is active; unknown actions are always allowed.
func (g *Gate) CheckAction(action Action) string {
	g.mu.Lock()
	blocked := g.active && g.hardcore
	g.mu.Unlock()

	if !blocked {
		return ""
	}

	switch action {
	case ActionSaveState:
		return reasonSaveState
	case ActionLoadState:
		return reasonLoadState
	case ActionRewind:
		return reasonRewind
	case ActionFastForward:
		return reasonFastForward
	default:
		return ""
	}
}
