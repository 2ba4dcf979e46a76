// Package backends defines the playable-media handle that each deck wraps,
// and the event notifications handles emit.
package backends

import (
	"errors"
	"time"
)

var (
	// ErrNoSource is returned by Play when no source has been assigned.
	ErrNoSource = errors.New("no source assigned")

	// ErrPlayRejected is returned by Play when the output refuses to start,
	// e.g. an autoplay policy or an unusable device.
	ErrPlayRejected = errors.New("play rejected")
)

// SilenceSource is the default neutral placeholder source. Handles render it
// as endless silence.
const SilenceSource = "silence:"

// Handle is an opaque playable-media resource. Load and Play never block on
// decoding; readiness and failures arrive later as events.
type Handle interface {
	// Source management
	SetSource(url string)
	Source() string
	Load() // Fire-and-forget; emits LoadedMetadata/CanPlayThrough or Error

	// Transport
	Play() error
	Pause()
	Paused() bool
	Ended() bool
	Buffered() bool // Enough data buffered to play through

	// Position and duration
	Position() time.Duration
	SetPosition(d time.Duration) error
	Duration() (time.Duration, bool) // ok is false while unknown or non-finite

	// Gain in [0, 1]
	Volume() float64
	SetVolume(v float64)

	// Notifications
	Subscribe(fn func(Event), kinds ...EventKind) Subscription

	Close() error
}

// Factory creates a handle for the deck with the given label.
type Factory func(label string) (Handle, error)
