package rasession

// Phase represents the current state of the achievement session.
type Phase int

const (
	// PhaseInactive is the idle state with no game running
	PhaseInactive Phase = iota
	// PhaseResolving means ROM identity resolution is in flight
	PhaseResolving
	// PhaseRecognized means resolution finished, recognized or not
	PhaseRecognized
	// PhaseActive is a live tracking session (softcore or hardcore)
	PhaseActive
	// PhaseEnding is the teardown transition back to inactive
	PhaseEnding
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseInactive:
		return "Inactive"
	case PhaseResolving:
		return "Resolving"
	case PhaseRecognized:
		return "Recognized"
	case PhaseActive:
		return "Active"
	case PhaseEnding:
		return "Ending"
	default:
		return "Unknown"
	}
}
