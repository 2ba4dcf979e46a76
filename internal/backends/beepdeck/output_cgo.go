//go:build (linux && cgo) || windows || darwin

package beepdeck

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/logging"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Output owns the speaker and creates decks that play through it
type Output struct {
	sampleRate beep.SampleRate
	files      Source
	logger     *log.Logger
}

// NewOutput initializes the speaker at sampleRate. The speaker can only be
// initialized once per process; later calls reuse it.
func NewOutput(sampleRate int, files Source, logger *log.Logger) (*Output, error) {
	logger = logging.OrDefault(logger)
	sr := beep.SampleRate(sampleRate)
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sr, sr.N(time.Second/10))
	})
	if speakerErr != nil {
		return nil, speakerErr
	}
	logger.Info("audio output ready", "rate", sampleRate)
	return &Output{sampleRate: sr, files: files, logger: logger}, nil
}

// NewDeck creates a deck and adds it to the speaker mixer.
// It satisfies backends.Factory.
func (o *Output) NewDeck(label string) (backends.Handle, error) {
	d := newDeck(label, o.sampleRate, o.files, o.logger)
	speaker.Play(d)
	return d, nil
}

// Close stops all speaker output
func (o *Output) Close() {
	speaker.Clear()
}
