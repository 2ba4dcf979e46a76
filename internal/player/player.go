// Package player drives the playback engine from a queue: it loads songs,
// starts near-end crossfades, and falls back to hard cuts when a crossfade
// cannot run.
package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/cache"
	"github.com/famish99/deckd/internal/clock"
	"github.com/famish99/deckd/internal/engine"
	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/playlist"
)

var (
	// ErrEmptyQueue is returned when playback is requested with nothing queued
	ErrEmptyQueue = errors.New("queue is empty")

	// ErrInvalidCrossfade is returned for negative crossfade lengths
	ErrInvalidCrossfade = errors.New("crossfade must not be negative")
)

// TagReader reads display metadata for a URL (see decoder.ProbeMetadata)
type TagReader func(ctx context.Context, url string) (map[string]string, error)

// Options configure a Player
type Options struct {
	// Engine options; the crossfade callbacks are owned by the player
	Engine engine.Options

	Crossfade       time.Duration // Near-end crossfade, 0 = hard cuts
	SkipCrossfade   time.Duration // Crossfade for Next/Previous while playing
	MonitorInterval time.Duration

	// Optional background preparation of queued songs
	Cache  *cache.DiskCache
	Decode cache.DecodeFunc
	Tags   TagReader

	Logger *log.Logger
}

// Player coordinates the queue with the playback engine
type Player struct {
	mu     sync.Mutex
	eng    *engine.Engine
	pl     *playlist.Playlist
	clock  clock.Clock
	logger *log.Logger

	cache  *cache.DiskCache
	decode cache.DecodeFunc
	tags   TagReader

	crossfade     time.Duration
	skipCrossfade time.Duration
	interval      time.Duration
	stopped       bool
	attempted     string // Now-playing song ID an automatic crossfade was tried for

	// Owned by the engine loop
	monitor clock.Timer
	closed  bool

	playingSub engine.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	// Subsystem change notification callback (e.g., for MPD idle notifications)
	notifySubsystem func(subsystem string)
}

// New creates a player and the engine it drives around two deck handles
func New(a, b backends.Handle, opts Options) (*Player, error) {
	logger := logging.OrDefault(opts.Logger)
	if opts.Crossfade < 0 || opts.SkipCrossfade < 0 {
		return nil, ErrInvalidCrossfade
	}
	interval := opts.MonitorInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		pl:            playlist.NewPlaylist(),
		logger:        logger,
		cache:         opts.Cache,
		decode:        opts.Decode,
		tags:          opts.Tags,
		crossfade:     opts.Crossfade,
		skipCrossfade: opts.SkipCrossfade,
		interval:      interval,
		stopped:       true,
		ctx:           ctx,
		cancel:        cancel,
	}

	eopts := opts.Engine
	if eopts.Logger == nil {
		eopts.Logger = logger
	}
	eopts.OnCrossfadeComplete = p.onCrossfadeComplete
	eopts.OnCrossfadeAbort = p.onCrossfadeAbort

	eng, err := engine.New(a, b, eopts)
	if err != nil {
		cancel()
		return nil, err
	}
	p.eng = eng
	p.clock = eng.Clock()

	// Surfaces can resume playback without going through the player
	p.playingSub = eng.WatchPlaying(func(playing bool) {
		if playing {
			p.mu.Lock()
			p.stopped = false
			p.mu.Unlock()
		}
	})
	return p, nil
}

// Engine returns the engine the player drives
func (p *Player) Engine() *engine.Engine {
	return p.eng
}

// GetPlaylist returns the queue
func (p *Player) GetPlaylist() *playlist.Playlist {
	return p.pl
}

// SetNotifySubsystem sets the callback for subsystem change notifications
func (p *Player) SetNotifySubsystem(callback func(subsystem string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifySubsystem = callback
}

func (p *Player) notify(subsystems ...string) {
	p.mu.Lock()
	fn := p.notifySubsystem
	p.mu.Unlock()

	if fn == nil {
		return
	}
	for _, s := range subsystems {
		fn(s)
	}
}

// Start begins watching the active deck for track ends and crossfade points
func (p *Player) Start() {
	p.eng.Loop().Post(func() {
		if p.monitor == nil && !p.closed {
			p.scheduleMonitor()
		}
	})
}

// Close stops the monitor, cancels background work and closes the engine
func (p *Player) Close() error {
	p.eng.Loop().Post(func() {
		p.closed = true
		if p.monitor != nil {
			p.monitor.Stop()
			p.monitor = nil
		}
	})
	p.playingSub.Close()
	p.cancel()
	p.logger.Info("closing player")
	return p.eng.Close()
}

func (p *Player) scheduleMonitor() {
	p.monitor = p.clock.AfterFunc(p.interval, func() {
		p.eng.Loop().Post(func() {
			if p.closed {
				return
			}
			p.checkTransition()
			p.scheduleMonitor()
		})
	})
}

// checkTransition runs on the loop every monitor interval
func (p *Player) checkTransition() {
	if p.eng.InCrossfade() {
		return
	}
	active := p.eng.Active()
	if active.Ended() {
		p.onTrackEnded()
		return
	}
	if !p.eng.Playing() {
		return
	}

	now := p.eng.NowPlaying()
	p.mu.Lock()
	xfade := p.crossfade
	attempted := p.attempted
	p.mu.Unlock()
	if xfade <= 0 || now.IsZero() || attempted == now.ID {
		return
	}
	dur, ok := active.Duration()
	if !ok {
		return
	}
	if dur-active.Position() > xfade {
		return
	}
	next, err := p.pl.PeekNext()
	if err != nil {
		return
	}

	p.mu.Lock()
	p.attempted = now.ID
	p.mu.Unlock()
	p.logger.Info("starting crossfade", "from", now.Title, "to", next.Title, "seconds", xfade.Seconds())
	p.startCrossfade(next, xfade)
}

// onTrackEnded hard cuts to the next song, or stops at the end of the queue
func (p *Player) onTrackEnded() {
	if !p.eng.Playing() {
		return
	}
	next, err := p.pl.Next()
	if err != nil {
		p.logger.Info("end of queue")
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		p.eng.Stop()
		p.notify("player")
		return
	}
	p.logger.Debug("track ended, hard cut", "next", next.Title)
	p.hardCut(next, true)
}

// startCrossfade moves the cursor to song and fades to it. The cursor is
// put back if the crossfade aborts.
func (p *Player) startCrossfade(song playlist.Song, d time.Duration) {
	if _, err := p.pl.SeekID(song.ID); err != nil {
		p.logger.Warn("crossfade target left the queue", "song", song.ID)
		return
	}
	p.eng.StartCrossfade(song, d)
	p.notify("player")
}

// hardCut loads song on the active deck, abandoning any crossfade
func (p *Player) hardCut(song playlist.Song, play bool) {
	if _, err := p.pl.SeekID(song.ID); err != nil {
		p.logger.Warn("song left the queue", "song", song.ID)
	}
	p.mu.Lock()
	if play {
		p.stopped = false
	}
	p.attempted = ""
	p.mu.Unlock()

	p.eng.LoadOnActive(song)
	if play {
		p.eng.Play()
	}
	p.notify("player")
}

func (p *Player) onCrossfadeComplete(song playlist.Song) {
	if _, err := p.pl.SeekID(song.ID); err != nil {
		p.logger.Debug("crossfaded song no longer queued", "song", song.ID)
	}
	p.notify("player")
}

func (p *Player) onCrossfadeAbort(a engine.Abort) {
	switch {
	case a.Next != nil:
		p.logger.Warn("crossfade aborted, hard cut", "reason", a.Reason, "next", a.Next.Title)
		p.hardCut(*a.Next, true)
	case a.Reason == engine.ReasonHardCut || a.Reason == engine.ReasonClosed:
		// The caller already chose what plays next
	default:
		if now := p.eng.NowPlaying(); !now.IsZero() {
			p.pl.SeekID(now.ID)
		}
		p.notify("player")
	}
}
