// Package beepdeck renders decks through the gopxl/beep speaker mixer.
// Each deck is a streamer that stays in the mixer for its whole life and
// outputs silence while paused, so pausing and gain changes never touch the
// speaker itself.
package beepdeck

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/wav"

	"github.com/famish99/deckd/internal/backends"
)

// Resolver turns a track URL into the path of a decoded WAV file
type Resolver func(ctx context.Context, url string) (string, error)

// Source is where decks get their decoded files from
type Source struct {
	Resolve Resolver
	// Invalidate drops the decoded file for url after it failed to open,
	// so the next load decodes again. Optional.
	Invalidate func(url string) error
}

var _ backends.Handle = (*Deck)(nil)

// track bundles the resources for one loaded source
type track struct {
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	volume   *effects.Volume
}

func (t *track) Close() {
	if t.streamer != nil {
		t.streamer.Close()
	}
	if t.file != nil {
		t.file.Close()
	}
}

// Deck is a backends.Handle playing decoded WAV files
type Deck struct {
	mu sync.Mutex

	label      string
	sampleRate beep.SampleRate
	files      Source
	logger     *log.Logger

	source   string
	track    *track
	paused   bool
	ended    bool
	buffered bool
	gain     float64
	closed   bool

	gen        uint64
	cancelLoad context.CancelFunc

	events *backends.Dispatcher
}

func newDeck(label string, sampleRate beep.SampleRate, files Source, logger *log.Logger) *Deck {
	return &Deck{
		label:      label,
		sampleRate: sampleRate,
		files:      files,
		logger:     logger.With("deck", label),
		paused:     true,
		gain:       1,
		events:     backends.NewDispatcher(),
	}
}

func (d *Deck) SetSource(url string) {
	d.mu.Lock()
	d.source = url
	d.mu.Unlock()
}

func (d *Deck) Source() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

// Load drops the current track and decodes the current source in the
// background. A later Load supersedes an unfinished one.
func (d *Deck) Load() {
	d.mu.Lock()
	if d.cancelLoad != nil {
		d.cancelLoad()
	}
	d.gen++
	gen := d.gen
	src := d.source
	old := d.track
	d.track = nil
	d.buffered = false
	d.ended = false
	d.paused = true
	ctx, cancel := context.WithCancel(context.Background())
	d.cancelLoad = cancel
	d.mu.Unlock()

	if old != nil {
		old.Close()
	}

	go d.load(ctx, gen, src)
}

func (d *Deck) load(ctx context.Context, gen uint64, src string) {
	if src == "" {
		return
	}
	if src == backends.SilenceSource {
		d.mu.Lock()
		current := d.gen == gen
		if current {
			d.buffered = true
		}
		d.mu.Unlock()
		if current {
			d.emit(backends.EventLoadedMetadata, src, nil)
			d.emit(backends.EventCanPlayThrough, src, nil)
		}
		return
	}

	t, err := d.open(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Warn("load failed", "source", src, "err", err)
		d.emit(backends.EventError, src, err)
		return
	}

	d.mu.Lock()
	if d.gen != gen || d.closed {
		d.mu.Unlock()
		t.Close()
		return
	}
	d.track = t
	d.buffered = true
	d.applyGain()
	d.mu.Unlock()

	d.logger.Debug("loaded", "source", src, "rate", t.format.SampleRate)
	d.emit(backends.EventLoadedMetadata, src, nil)
	d.emit(backends.EventCanPlayThrough, src, nil)
}

func (d *Deck) open(ctx context.Context, src string) (*track, error) {
	path, err := d.files.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		d.invalidate(src)
		return nil, fmt.Errorf("failed to open decoded file: %w", err)
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		// The decoded file may be corrupt
		d.invalidate(src)
		return nil, fmt.Errorf("failed to decode wav: %w", err)
	}

	t := &track{file: f, streamer: streamer, format: format}

	// Resample if needed to match speaker sample rate
	var s beep.Streamer = streamer
	if format.SampleRate != d.sampleRate {
		s = beep.Resample(4, format.SampleRate, d.sampleRate, streamer)
	}
	t.volume = &effects.Volume{Streamer: s, Base: 2}
	return t, nil
}

func (d *Deck) invalidate(src string) {
	if d.files.Invalidate == nil {
		return
	}
	if err := d.files.Invalidate(src); err != nil {
		d.logger.Warn("failed to invalidate decoded file", "source", src, "err", err)
	}
}

// applyGain maps the linear gain onto the track's volume effect.
// Caller holds d.mu.
func (d *Deck) applyGain() {
	if d.track == nil {
		return
	}
	v := d.track.volume
	if d.gain <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(d.gain)
}

func (d *Deck) Play() error {
	d.mu.Lock()
	if d.source == "" {
		d.mu.Unlock()
		return backends.ErrNoSource
	}
	if d.ended && d.track != nil {
		if err := d.track.streamer.Seek(0); err != nil {
			d.mu.Unlock()
			return fmt.Errorf("failed to rewind: %w", err)
		}
	}
	d.ended = false
	wasPaused := d.paused
	d.paused = false
	src := d.source
	d.mu.Unlock()

	if wasPaused {
		d.emit(backends.EventPlaying, src, nil)
	}
	return nil
}

func (d *Deck) Pause() {
	d.mu.Lock()
	wasPlaying := !d.paused
	d.paused = true
	src := d.source
	d.mu.Unlock()

	if wasPlaying {
		d.emit(backends.EventPause, src, nil)
	}
}

func (d *Deck) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *Deck) Ended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ended
}

func (d *Deck) Buffered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffered
}

func (d *Deck) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return 0
	}
	return d.track.format.SampleRate.D(d.track.streamer.Position())
}

func (d *Deck) SetPosition(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return nil
	}

	n := d.track.format.SampleRate.N(pos)
	n = max(0, min(n, d.track.streamer.Len()))
	if err := d.track.streamer.Seek(n); err != nil {
		return fmt.Errorf("seek failed: %w", err)
	}
	d.ended = false
	return nil
}

func (d *Deck) Duration() (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return 0, false
	}
	return d.track.format.SampleRate.D(d.track.streamer.Len()), true
}

func (d *Deck) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

func (d *Deck) SetVolume(v float64) {
	d.mu.Lock()
	d.gain = max(0, min(v, 1))
	d.applyGain()
	d.mu.Unlock()
}

func (d *Deck) Subscribe(fn func(backends.Event), kinds ...backends.EventKind) backends.Subscription {
	return d.events.Subscribe(fn, kinds...)
}

// Close releases the track. The speaker drops the deck on its next pull.
func (d *Deck) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.cancelLoad != nil {
		d.cancelLoad()
	}
	if d.track != nil {
		d.track.Close()
		d.track = nil
	}
	return nil
}

func (d *Deck) emit(kind backends.EventKind, src string, err error) {
	d.events.Emit(backends.Event{Kind: kind, Source: src, Err: err})
}

// Stream implements beep.Streamer. It runs on the speaker goroutine, so
// events raised here are emitted from a fresh goroutine.
func (d *Deck) Stream(samples [][2]float64) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, false
	}
	if d.paused || d.track == nil {
		clear(samples)
		return len(samples), true
	}

	n, ok := d.track.volume.Stream(samples)
	if ok && n == len(samples) {
		return n, true
	}

	clear(samples[n:])
	if err := d.track.streamer.Err(); err != nil {
		d.paused = true
		go d.emit(backends.EventError, d.source, err)
		return len(samples), true
	}
	d.paused = true
	d.ended = true
	go d.emit(backends.EventEnded, d.source, nil)
	return len(samples), true
}

// Err implements beep.Streamer
func (d *Deck) Err() error { return nil }
