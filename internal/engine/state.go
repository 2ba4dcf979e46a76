package engine

// State is the phase of a crossfade session
type State int32

const (
	StateIdle State = iota
	StateAwaitingReady
	StateFading
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateFading:
		return "fading"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// InFlight reports whether a session in this state still owns the decks
func (s State) InFlight() bool {
	return s == StateAwaitingReady || s == StateFading
}

// Label identifies one of the two decks
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
)

// Other returns the opposite deck label
func (l Label) Other() Label {
	if l == LabelA {
		return LabelB
	}
	return LabelA
}
