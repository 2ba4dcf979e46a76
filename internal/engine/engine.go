// Package engine is the dual-deck playback core: a pool of two deck handles
// and a crossfade controller that moves playback between them.
//
// Every mutation runs on a single event loop. Public methods post work to
// the loop and return; when called from an idle loop (the common case in
// tests and direct user gestures) the work has finished by the time they
// return.
package engine

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/clock"
	"github.com/famish99/deckd/internal/eventloop"
	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/playlist"
)

// Timings are the crossfade controller's fixed intervals
type Timings struct {
	Tick         time.Duration // Fade progress tick
	ReadyTimeout time.Duration // How long the incoming deck has to become ready
	SafetyMargin time.Duration // Added to the fade duration for the safety net
	LateProgress time.Duration // Incoming position that counts as audibly progressing
}

// DefaultTimings returns the standard controller intervals
func DefaultTimings() Timings {
	return Timings{
		Tick:         50 * time.Millisecond,
		ReadyTimeout: 5 * time.Second,
		SafetyMargin: 5 * time.Second,
		LateProgress: time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.Tick <= 0 {
		t.Tick = d.Tick
	}
	if t.ReadyTimeout <= 0 {
		t.ReadyTimeout = d.ReadyTimeout
	}
	if t.SafetyMargin <= 0 {
		t.SafetyMargin = d.SafetyMargin
	}
	if t.LateProgress <= 0 {
		t.LateProgress = d.LateProgress
	}
	return t
}

// Options configure an Engine. Zero values get defaults.
type Options struct {
	Timings     Timings
	Placeholder string // Silent source parked decks are left on
	Clock       clock.Clock
	Loop        *eventloop.Loop
	Logger      *log.Logger

	// Called on the loop when a crossfade swaps decks, with the now-playing song.
	OnCrossfadeComplete func(playlist.Song)
	// Called on the loop for every aborted crossfade.
	OnCrossfadeAbort func(Abort)
}

// Engine is the public face of the playback core
type Engine struct {
	pool    *Pool
	xf      *crossfader
	loop    *eventloop.Loop
	clock   clock.Clock
	logger  *log.Logger
	playing Flag
	now     nowPlaying
}

// New builds an engine around two deck handles. Both are required.
func New(a, b backends.Handle, opts Options) (*Engine, error) {
	logger := logging.OrDefault(opts.Logger)
	pool, err := NewPool(a, b, opts.Placeholder, logger)
	if err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	loop := opts.Loop
	if loop == nil {
		loop = eventloop.New(logger)
	}

	e := &Engine{
		pool:   pool,
		loop:   loop,
		clock:  clk,
		logger: logger,
	}
	e.xf = &crossfader{
		pool:    pool,
		loop:    loop,
		clock:   clk,
		timings: opts.Timings.withDefaults(),
		playing: &e.playing,
		logger:  logger,
		onAbort: opts.OnCrossfadeAbort,
	}
	e.xf.onComplete = func(song playlist.Song) {
		e.now.set(song)
		if opts.OnCrossfadeComplete != nil {
			opts.OnCrossfadeComplete(song)
		}
	}
	return e, nil
}

// Loop returns the event loop the engine runs on. Components that react to
// engine state share it.
func (e *Engine) Loop() *eventloop.Loop { return e.loop }

// Clock returns the engine's clock
func (e *Engine) Clock() clock.Clock { return e.clock }

// Inbound from the queue layer

// LoadOnActive hard cuts the active deck to song. An in-flight crossfade is
// abandoned first.
func (e *Engine) LoadOnActive(song playlist.Song) {
	e.loop.Post(func() {
		e.xf.cancel(ReasonHardCut)
		e.pool.LoadOnActive(song)
		e.now.set(song)
	})
}

// UpdateNowPlaying republishes song when it is the one playing, typically
// after its tags were read. Other songs are ignored.
func (e *Engine) UpdateNowPlaying(song playlist.Song) {
	e.loop.Post(func() {
		e.xf.updateSong(song)
		if e.now.get().ID != song.ID {
			return
		}
		e.now.set(song)
	})
}

// PreloadOnInactive prepares song on the silent inactive deck. Ignored while
// a crossfade owns that deck.
func (e *Engine) PreloadOnInactive(song playlist.Song) {
	e.loop.Post(func() {
		if e.xf.State().InFlight() {
			e.logger.Debug("preload ignored during crossfade", "url", song.URL)
			return
		}
		e.pool.PreloadOnInactive(song)
	})
}

// StartCrossfade transitions to song over duration. A crossfade already in
// flight makes this a no-op.
func (e *Engine) StartCrossfade(song playlist.Song, duration time.Duration) {
	e.loop.Post(func() {
		e.xf.start(song, duration)
	})
}

// Prime unlocks later playback on the inactive deck. Call it from the same
// call stack as a user action. Failure is logged and retried on the next call,
// as is a call made during a crossfade.
func (e *Engine) Prime() {
	e.loop.Post(func() {
		if e.pool.Primed() {
			return
		}
		// Priming plays the inactive deck, which a crossfade owns
		if e.xf.State().InFlight() {
			e.logger.Debug("priming deferred during crossfade")
			return
		}
		e.pool.setPriming(true)
		if err := e.pool.Prime(); err != nil {
			e.logger.Warn("priming failed", "err", err)
		} else {
			e.logger.Debug("decks primed")
		}
		// Events emitted during the cycle are already queued ahead of this.
		e.loop.Post(func() { e.pool.setPriming(false) })
	})
}

// Transport

// Play resumes the active deck and raises the playing flag. A rejected play
// is logged and leaves the flag down.
func (e *Engine) Play() {
	e.loop.Post(func() {
		h := e.pool.GetActive()
		if src := h.Source(); src == "" || src == e.pool.Placeholder() {
			e.logger.Debug("play ignored, nothing loaded")
			return
		}
		if err := h.Play(); err != nil {
			e.logger.Warn("active deck refused to play", "deck", e.pool.ActiveLabel(), "err", err)
			e.playing.Set(false)
			return
		}
		e.playing.Set(true)
	})
}

// Pause lowers the playing flag and pauses the active deck. An in-flight
// crossfade aborts as "user paused".
func (e *Engine) Pause() {
	e.loop.Post(func() {
		e.playing.Set(false)
		e.pool.GetActive().Pause()
	})
}

// Stop pauses and rewinds the active deck
func (e *Engine) Stop() {
	e.loop.Post(func() {
		e.playing.Set(false)
		h := e.pool.GetActive()
		h.Pause()
		_ = h.SetPosition(0)
	})
}

// Seek moves the active deck to d
func (e *Engine) Seek(d time.Duration) {
	e.loop.Post(func() {
		if err := e.pool.GetActive().SetPosition(d); err != nil {
			e.logger.Warn("seek failed", "position", d, "err", err)
		}
	})
}

// SetPlaying sets the playing flag without touching the decks
func (e *Engine) SetPlaying(v bool) {
	e.loop.Post(func() { e.playing.Set(v) })
}

// MuteInactive forces the inactive deck silent unless it is legitimately
// playing for priming or a crossfade.
func (e *Engine) MuteInactive() {
	e.loop.Post(func() {
		if e.pool.Priming() || e.xf.State().InFlight() {
			return
		}
		h := e.pool.GetInactive()
		if h.Volume() != 0 {
			e.logger.Debug("muting stray inactive deck", "deck", e.pool.ActiveLabel().Other())
			h.SetVolume(0)
		}
	})
}

// Observation (safe from any goroutine)

// Playing returns the playing flag
func (e *Engine) Playing() bool { return e.playing.Get() }

// WatchPlaying registers fn for playing flag changes. fn runs on the loop.
func (e *Engine) WatchPlaying(fn func(bool)) Subscription { return e.playing.Watch(fn) }

// NowPlaying returns the song on the active deck
func (e *Engine) NowPlaying() playlist.Song { return e.now.get() }

// WatchNowPlaying registers fn for now-playing transitions. fn runs on the loop.
func (e *Engine) WatchNowPlaying(fn func(playlist.Song)) Subscription { return e.now.watch.add(fn) }

// Active returns the active deck handle
func (e *Engine) Active() backends.Handle { return e.pool.GetActive() }

// Inactive returns the inactive deck handle
func (e *Engine) Inactive() backends.Handle { return e.pool.GetInactive() }

// ActiveLabel returns the active deck label
func (e *Engine) ActiveLabel() Label { return e.pool.ActiveLabel() }

// Deck returns the handle with the given label
func (e *Engine) Deck(l Label) backends.Handle { return e.pool.Deck(l) }

// CrossfadeState returns the state of the latest crossfade session
func (e *Engine) CrossfadeState() State { return e.xf.State() }

// InCrossfade reports whether a crossfade currently owns both decks
func (e *Engine) InCrossfade() bool { return e.xf.State().InFlight() }

// Priming reports whether a prime cycle is in progress
func (e *Engine) Priming() bool { return e.pool.Priming() }

// Primed reports whether priming has succeeded
func (e *Engine) Primed() bool { return e.pool.Primed() }

// Close abandons any crossfade and releases both decks
func (e *Engine) Close() error {
	e.loop.Post(func() {
		e.xf.cancel(ReasonClosed)
		e.playing.Set(false)
	})
	return errors.Join(e.pool.Deck(LabelA).Close(), e.pool.Deck(LabelB).Close())
}
