// Package mediasession mirrors the active deck onto external media control
// surfaces and turns their commands back into engine calls.
package mediasession

import (
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/clock"
	"github.com/famish99/deckd/internal/engine"
	"github.com/famish99/deckd/internal/eventloop"
	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/playlist"
)

// Engine is the part of the playback engine the synchronizer drives.
// *engine.Engine implements it.
type Engine interface {
	Loop() *eventloop.Loop
	Clock() clock.Clock

	Play()
	Pause()
	Seek(d time.Duration)
	SetPlaying(v bool)
	MuteInactive()

	Playing() bool
	WatchPlaying(fn func(bool)) engine.Subscription
	NowPlaying() playlist.Song
	WatchNowPlaying(fn func(playlist.Song)) engine.Subscription
	Active() backends.Handle
	ActiveLabel() engine.Label
	Deck(l engine.Label) backends.Handle
	InCrossfade() bool
	Priming() bool
}

// Timings are the synchronizer's fixed windows
type Timings struct {
	Debounce         time.Duration // Bursts of play/pause collapse to the last one
	Cooldown         time.Duration // Opposite action this recent may already be satisfied
	GlitchWindow     time.Duration // Pause this soon after a play is treated as noise
	PositionInterval time.Duration // Scrubber republish interval
	NavResumeDelay   time.Duration // Delay before re-issuing play after next/previous
}

// DefaultTimings returns the standard windows
func DefaultTimings() Timings {
	return Timings{
		Debounce:         300 * time.Millisecond,
		Cooldown:         500 * time.Millisecond,
		GlitchWindow:     2 * time.Second,
		PositionInterval: time.Second,
		NavResumeDelay:   100 * time.Millisecond,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.Debounce <= 0 {
		t.Debounce = d.Debounce
	}
	if t.Cooldown <= 0 {
		t.Cooldown = d.Cooldown
	}
	if t.GlitchWindow <= 0 {
		t.GlitchWindow = d.GlitchWindow
	}
	if t.PositionInterval <= 0 {
		t.PositionInterval = d.PositionInterval
	}
	if t.NavResumeDelay <= 0 {
		t.NavResumeDelay = d.NavResumeDelay
	}
	return t
}

// Options configure a Synchronizer
type Options struct {
	Timings Timings
	Logger  *log.Logger

	// Track navigation is owned by the caller
	OnNext     func()
	OnPrevious func()
}

// Synchronizer keeps a Surface consistent with the engine. All state is
// owned by the engine loop.
type Synchronizer struct {
	eng     Engine
	surface Surface
	loop    *eventloop.Loop
	clock   clock.Clock
	timings Timings
	logger  *log.Logger

	onNext     func()
	onPrevious func()

	// Debounce state
	pending       Action
	debounceTimer clock.Timer
	lastAction    Action
	lastAt        time.Time

	positionTimer clock.Timer
	navTimer      clock.Timer
	subs          backends.Subscriptions
	started       bool
}

// New creates a synchronizer. Call Start to bind it.
func New(eng Engine, surface Surface, opts Options) *Synchronizer {
	logger := logging.OrDefault(opts.Logger)
	return &Synchronizer{
		eng:        eng,
		surface:    surface,
		loop:       eng.Loop(),
		clock:      eng.Clock(),
		timings:    opts.Timings.withDefaults(),
		logger:     logger,
		onNext:     opts.OnNext,
		onPrevious: opts.OnPrevious,
	}
}

// Start binds action handlers, subscribes to both decks and publishes the
// current state.
func (s *Synchronizer) Start() {
	s.loop.Post(func() {
		if s.started {
			return
		}
		s.started = true

		s.surface.SetActionHandler(ActionPlay, s.post(func(ActionDetails) { s.request(ActionPlay) }))
		s.surface.SetActionHandler(ActionPause, s.post(func(ActionDetails) { s.request(ActionPause) }))
		s.surface.SetActionHandler(ActionNextTrack, s.post(func(ActionDetails) { s.navigate(s.onNext, "next") }))
		s.surface.SetActionHandler(ActionPreviousTrack, s.post(func(ActionDetails) { s.navigate(s.onPrevious, "previous") }))
		s.surface.SetActionHandler(ActionSeekTo, s.post(s.seekTo))

		for _, l := range []engine.Label{engine.LabelA, engine.LabelB} {
			label := l
			s.subs = append(s.subs, s.eng.Deck(label).Subscribe(func(ev backends.Event) {
				s.loop.Post(func() { s.onDeckEvent(label, ev) })
			}))
		}
		s.subs = append(s.subs, s.eng.WatchPlaying(func(bool) {
			s.loop.Post(s.publishState)
		}))
		s.subs = append(s.subs, s.eng.WatchNowPlaying(func(song playlist.Song) {
			s.loop.Post(func() { s.publishMetadata(song) })
		}))

		if song := s.eng.NowPlaying(); !song.IsZero() {
			s.publishMetadata(song)
		}
		s.publishState()
		s.schedulePosition()
	})
}

// Close unbinds the surface and releases every subscription
func (s *Synchronizer) Close() {
	s.loop.Post(func() {
		if !s.started {
			return
		}
		s.started = false
		stopTimer(&s.debounceTimer)
		stopTimer(&s.positionTimer)
		stopTimer(&s.navTimer)
		s.subs.Close()
		for _, a := range Actions {
			s.surface.SetActionHandler(a, nil)
		}
		s.surface.SetPlaybackState(PlaybackNone)
	})
}

// post wraps a handler so it runs on the loop
func (s *Synchronizer) post(fn func(ActionDetails)) Handler {
	return func(d ActionDetails) {
		s.loop.Post(func() {
			if s.started {
				fn(d)
			}
		})
	}
}

// Debounced play/pause

func (s *Synchronizer) request(a Action) {
	s.pending = a
	stopTimer(&s.debounceTimer)
	s.debounceTimer = s.clock.AfterFunc(s.timings.Debounce, func() {
		s.loop.Post(s.flush)
	})
}

func (s *Synchronizer) flush() {
	s.debounceTimer = nil
	a := s.pending
	s.pending = ""
	if a == "" || !s.started {
		return
	}
	s.execute(a)
}

func (s *Synchronizer) execute(a Action) {
	now := s.clock.Now()
	deckPlaying := !s.eng.Active().Paused()
	wantPlaying := a == ActionPlay
	since := now.Sub(s.lastAt)

	if s.lastAction != "" && s.lastAction != a {
		if a == ActionPause && since < s.timings.GlitchWindow && deckPlaying {
			s.logger.Debug("ignoring pause right after play", "since", since)
			s.publishState()
			return
		}
		if since < s.timings.Cooldown && deckPlaying == wantPlaying {
			s.logger.Debug("action already satisfied, syncing flag", "action", a, "since", since)
			s.eng.SetPlaying(wantPlaying)
			s.publishState()
			return
		}
	}

	s.logger.Debug("executing media action", "action", a)
	if wantPlaying {
		s.eng.Play()
	} else {
		s.eng.Pause()
	}
	s.lastAction = a
	s.lastAt = now
}

// Navigation and seeking

func (s *Synchronizer) navigate(fn func(), name string) {
	if fn == nil {
		s.logger.Debug("no navigation handler", "action", name)
		return
	}
	wasPlaying := s.eng.Playing()
	fn()

	stopTimer(&s.navTimer)
	s.navTimer = s.clock.AfterFunc(s.timings.NavResumeDelay, func() {
		s.loop.Post(func() {
			s.navTimer = nil
			if s.started && (wasPlaying || s.eng.Playing()) {
				s.eng.Play()
			}
		})
	})
}

func (s *Synchronizer) seekTo(d ActionDetails) {
	sec := d.SeekTime
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		s.logger.Warn("ignoring invalid seek", "seconds", sec)
		return
	}
	s.eng.Seek(time.Duration(sec * float64(time.Second)))
	s.publishPosition()
}

// Deck events

func (s *Synchronizer) onDeckEvent(label engine.Label, ev backends.Event) {
	if !s.started {
		return
	}
	if label != s.eng.ActiveLabel() {
		// Expected while priming or crossfading.
		if s.eng.Priming() || s.eng.InCrossfade() {
			return
		}
		s.eng.MuteInactive()
		return
	}

	switch ev.Kind {
	case backends.EventPlaying:
		if !s.eng.Playing() {
			s.eng.SetPlaying(true)
		}
		s.publishState()
	case backends.EventPause:
		if s.eng.Playing() && !s.eng.Active().Ended() {
			s.eng.SetPlaying(false)
		}
		s.publishState()
	case backends.EventLoadedMetadata, backends.EventEnded:
		s.publishPosition()
	}
}

// Publishing

func (s *Synchronizer) publishState() {
	if !s.started {
		return
	}
	switch {
	case s.eng.NowPlaying().IsZero():
		s.surface.SetPlaybackState(PlaybackNone)
	case s.eng.Playing():
		s.surface.SetPlaybackState(PlaybackPlaying)
	default:
		s.surface.SetPlaybackState(PlaybackPaused)
	}
}

func (s *Synchronizer) publishMetadata(song playlist.Song) {
	if !s.started {
		return
	}
	s.surface.SetMetadata(Metadata{
		Title:   song.Title,
		Artist:  song.Artist,
		Album:   song.Album,
		Artwork: song.Artwork,
	})
	s.publishState()
	s.publishPosition()
}

func (s *Synchronizer) publishPosition() {
	h := s.eng.Active()
	d, ok := h.Duration()
	if !ok || d <= 0 {
		return
	}
	pos := h.Position()
	if pos < 0 {
		pos = 0
	}
	if pos > d {
		pos = d
	}
	s.surface.SetPositionState(PositionState{Duration: d, Position: pos, Rate: 1})
}

func (s *Synchronizer) schedulePosition() {
	s.positionTimer = s.clock.AfterFunc(s.timings.PositionInterval, func() {
		s.loop.Post(func() {
			if !s.started {
				return
			}
			s.publishPosition()
			s.schedulePosition()
		})
	})
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
