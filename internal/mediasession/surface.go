package mediasession

import "time"

// Action is a transport command sent by an external control surface
type Action string

const (
	ActionPlay          Action = "play"
	ActionPause         Action = "pause"
	ActionPreviousTrack Action = "previoustrack"
	ActionNextTrack     Action = "nexttrack"
	ActionSeekTo        Action = "seekto"
)

// Actions lists every action a synchronizer binds
var Actions = []Action{ActionPlay, ActionPause, ActionPreviousTrack, ActionNextTrack, ActionSeekTo}

// PlaybackState is the transport state shown by the surface
type PlaybackState int

const (
	PlaybackNone PlaybackState = iota
	PlaybackPaused
	PlaybackPlaying
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackPaused:
		return "paused"
	case PlaybackPlaying:
		return "playing"
	default:
		return "none"
	}
}

// Metadata is the now-playing information shown by the surface
type Metadata struct {
	Title   string
	Artist  string
	Album   string
	Artwork string // Image URL, empty if none
}

// PositionState drives the surface's scrubber
type PositionState struct {
	Duration time.Duration
	Position time.Duration
	Rate     float64
}

// ActionDetails accompanies an action. SeekTime is in seconds and only set
// for ActionSeekTo; surfaces pass it through unvalidated.
type ActionDetails struct {
	Action   Action
	SeekTime float64
}

// Handler reacts to an action. Surfaces may call it from any goroutine.
type Handler func(ActionDetails)

// Surface is an OS-level media control integration (lock screen,
// notification area, remote protocol).
type Surface interface {
	SetMetadata(Metadata)
	SetPlaybackState(PlaybackState)
	SetPositionState(PositionState)
	// SetActionHandler binds h to a, or unbinds it when h is nil.
	SetActionHandler(a Action, h Handler)
}

// Multi fans a single synchronizer out to several surfaces
func Multi(surfaces ...Surface) Surface {
	return multi(surfaces)
}

type multi []Surface

func (m multi) SetMetadata(md Metadata) {
	for _, s := range m {
		s.SetMetadata(md)
	}
}

func (m multi) SetPlaybackState(st PlaybackState) {
	for _, s := range m {
		s.SetPlaybackState(st)
	}
}

func (m multi) SetPositionState(ps PositionState) {
	for _, s := range m {
		s.SetPositionState(ps)
	}
}

func (m multi) SetActionHandler(a Action, h Handler) {
	for _, s := range m {
		s.SetActionHandler(a, h)
	}
}
