package engine

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/clock"
	"github.com/famish99/deckd/internal/eventloop"
	"github.com/famish99/deckd/internal/playlist"
)

// Abort describes a crossfade that ended without swapping decks.
type Abort struct {
	Reason string
	// Next is the song the crossfade was heading to, set only when the
	// outgoing track had already ended so the caller can hard cut to it.
	Next *playlist.Song
}

// session is one crossfade attempt
type session struct {
	id          string
	state       State
	song        playlist.Song
	duration    time.Duration
	target      float64
	outgoing    Label
	incoming    Label
	startedAt   time.Time
	fadeStarted time.Time
	progress    float64

	readyTimer  clock.Timer
	tickTimer   clock.Timer
	safetyTimer clock.Timer
	subs        backends.Subscriptions
}

// crossfader drives at most one session at a time. All methods run on the
// engine loop.
type crossfader struct {
	pool    *Pool
	loop    *eventloop.Loop
	clock   clock.Clock
	timings Timings
	playing *Flag
	logger  *log.Logger

	onComplete func(playlist.Song)
	onAbort    func(Abort)

	current *session
	state   atomic.Int32 // State of the latest session, readable off-loop
}

func (c *crossfader) State() State {
	return State(c.state.Load())
}

func (c *crossfader) setState(s *session, st State) {
	s.state = st
	c.state.Store(int32(st))
}

// updateSong refreshes the metadata of the song an in-flight session is
// heading to, so completion publishes the latest tags.
func (c *crossfader) updateSong(song playlist.Song) {
	if c.current != nil && c.current.state.InFlight() && c.current.song.ID == song.ID {
		c.current.song = song
	}
}

// start begins a crossfade to song. A session already in flight makes this
// a no-op.
func (c *crossfader) start(song playlist.Song, duration time.Duration) {
	if c.current != nil && c.current.state.InFlight() {
		c.logger.Debug("crossfade already in progress, ignoring start", "session", c.current.id, "url", song.URL)
		return
	}

	out, in := c.pool.GetActive(), c.pool.GetInactive()
	target := out.Volume()
	if target <= 0 {
		target = 1
	}

	s := &session{
		id:        uuid.NewString(),
		song:      song,
		duration:  duration,
		target:    target,
		outgoing:  c.pool.ActiveLabel(),
		incoming:  c.pool.ActiveLabel().Other(),
		startedAt: c.clock.Now(),
	}
	c.current = s
	c.setState(s, StateAwaitingReady)

	c.logger.Info("crossfade starting", "session", s.id, "from", s.outgoing, "to", s.incoming,
		"url", song.URL, "duration", duration)

	// Scoped to this session; released on every exit path.
	s.subs = append(s.subs, in.Subscribe(func(ev backends.Event) {
		c.loop.Post(func() { c.onIncomingEvent(s, ev) })
	}, backends.EventCanPlayThrough, backends.EventError, backends.EventStalled))
	s.subs = append(s.subs, c.playing.Watch(func(playing bool) {
		if !playing {
			c.loop.Post(func() { c.abort(s, ReasonUserPaused) })
		}
	}))

	c.pool.PreloadOnInactive(song)

	s.readyTimer = c.clock.AfterFunc(c.timings.ReadyTimeout, func() {
		c.loop.Post(func() { c.onReadyTimeout(s) })
	})
	s.safetyTimer = c.clock.AfterFunc(duration+c.timings.SafetyMargin, func() {
		c.loop.Post(func() { c.onSafetyTimeout(s) })
	})
}

func (c *crossfader) onIncomingEvent(s *session, ev backends.Event) {
	if c.current != s || ev.Source != s.song.URL {
		return
	}
	switch ev.Kind {
	case backends.EventCanPlayThrough:
		if s.state == StateAwaitingReady {
			c.beginFading(s)
		}
	case backends.EventError:
		c.logger.Warn("incoming deck error", "session", s.id, "err", ev.Err)
		c.abort(s, ReasonDeckError)
	case backends.EventStalled:
		if s.state == StateFading {
			c.abort(s, ReasonDeckStopped)
		}
	}
}

func (c *crossfader) onReadyTimeout(s *session) {
	if c.current != s || s.state != StateAwaitingReady {
		return
	}
	if c.pool.Deck(s.incoming).Buffered() {
		c.logger.Debug("ready notification missed, buffered data is sufficient", "session", s.id)
		c.beginFading(s)
		return
	}
	c.abort(s, ReasonNeverReady)
}

func (c *crossfader) beginFading(s *session) {
	stopTimer(&s.readyTimer)

	if !c.playing.Get() {
		c.abort(s, ReasonUserPaused)
		return
	}

	in := c.pool.Deck(s.incoming)
	in.SetVolume(0)
	if err := in.Play(); err != nil {
		c.logger.Warn("incoming deck refused to play", "session", s.id, "err", err)
		c.abort(s, ReasonPlayRejected)
		return
	}

	s.fadeStarted = c.clock.Now()
	c.setState(s, StateFading)
	c.scheduleTick(s)
}

func (c *crossfader) scheduleTick(s *session) {
	s.tickTimer = c.clock.AfterFunc(c.timings.Tick, func() {
		c.loop.Post(func() { c.tick(s) })
	})
}

func (c *crossfader) tick(s *session) {
	if c.current != s || s.state != StateFading {
		return
	}

	if !c.playing.Get() {
		c.abort(s, ReasonUserPaused)
		return
	}
	in := c.pool.Deck(s.incoming)
	if in.Paused() {
		c.abort(s, ReasonDeckStopped)
		return
	}

	p := Progress(c.clock.Now().Sub(s.fadeStarted), s.duration)
	if p < s.progress {
		p = s.progress
	}
	s.progress = p

	outVol, inVol := EqualPower(p, s.target)
	c.pool.Deck(s.outgoing).SetVolume(outVol)
	in.SetVolume(inVol)

	if p >= 1 {
		c.complete(s)
		return
	}
	c.scheduleTick(s)
}

func (c *crossfader) onSafetyTimeout(s *session) {
	if c.current != s || !s.state.InFlight() {
		return
	}
	in := c.pool.Deck(s.incoming)
	if !in.Paused() && in.Position() > c.timings.LateProgress {
		c.logger.Warn("crossfade overran, incoming deck is audible; completing late", "session", s.id)
		c.complete(s)
		return
	}
	c.abort(s, ReasonSafetyTimeout)
}

func (c *crossfader) complete(s *session) {
	if c.current != s || !s.state.InFlight() {
		return
	}
	c.teardown(s)

	s.progress = 1
	c.pool.swap()
	c.pool.Deck(s.incoming).SetVolume(s.target)
	c.pool.park(s.outgoing)

	c.setState(s, StateCompleted)
	c.current = nil

	c.logger.Info("crossfade completed", "session", s.id, "active", s.incoming,
		"url", s.song.URL, "took", c.clock.Now().Sub(s.startedAt))
	if c.onComplete != nil {
		c.onComplete(s.song)
	}
}

// abort is the single exit for every failed session. Secondary calls are
// no-ops because the session has already left the in-flight states.
func (c *crossfader) abort(s *session, reason string) {
	if c.current != s || !s.state.InFlight() {
		return
	}
	c.teardown(s)

	out := c.pool.Deck(s.outgoing)
	out.SetVolume(s.target)
	if reason == ReasonUserPaused {
		out.Pause()
	}
	outgoingEnded := out.Ended()
	c.pool.park(s.incoming)

	c.setState(s, StateAborted)
	c.current = nil

	c.logger.Warn("crossfade aborted", "session", s.id, "reason", reason, "outgoing_ended", outgoingEnded)

	a := Abort{Reason: reason}
	if outgoingEnded && !quietReason(reason) {
		next := s.song
		a.Next = &next
	}
	if c.onAbort != nil {
		c.onAbort(a)
	}
}

// teardown stops every timer and releases the session's subscriptions
func (c *crossfader) teardown(s *session) {
	stopTimer(&s.readyTimer)
	stopTimer(&s.tickTimer)
	stopTimer(&s.safetyTimer)
	s.subs.Close()
}

// cancel aborts the current session, if any, with reason
func (c *crossfader) cancel(reason string) {
	if c.current != nil {
		c.abort(c.current, reason)
	}
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
