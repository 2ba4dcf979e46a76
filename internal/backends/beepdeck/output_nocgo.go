//go:build !((linux && cgo) || windows || darwin)

package beepdeck

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/backends"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires cgo for native sound libraries.
const AudioAvailable = false

// ErrAudioUnavailable is returned when the build has no audio output
var ErrAudioUnavailable = errors.New("audio output requires cgo")

// Output is unavailable without cgo
type Output struct{}

// NewOutput always fails in builds without audio support
func NewOutput(sampleRate int, files Source, logger *log.Logger) (*Output, error) {
	return nil, ErrAudioUnavailable
}

// NewDeck always fails in builds without audio support
func (o *Output) NewDeck(label string) (backends.Handle, error) {
	return nil, ErrAudioUnavailable
}

// Close is a no-op
func (o *Output) Close() {}
