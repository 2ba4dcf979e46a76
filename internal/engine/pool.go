package engine

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/playlist"
)

// Pool owns the two deck handles and knows which one is active. It is the
// only place deck sources are assigned.
//
// Mutating methods must run on the engine loop. The mutex only makes the
// accessors safe to call from other goroutines.
type Pool struct {
	mu          sync.Mutex
	decks       map[Label]backends.Handle
	songs       map[Label]playlist.Song
	active      Label
	primed      bool
	priming     bool
	placeholder string
	logger      *log.Logger
}

// NewPool creates a pool with deck A active
func NewPool(a, b backends.Handle, placeholder string, logger *log.Logger) (*Pool, error) {
	if a == nil || b == nil {
		return nil, ErrMissingDeck
	}
	if placeholder == "" {
		placeholder = backends.SilenceSource
	}
	logger = logging.OrDefault(logger)
	return &Pool{
		decks:       map[Label]backends.Handle{LabelA: a, LabelB: b},
		songs:       make(map[Label]playlist.Song),
		active:      LabelA,
		placeholder: placeholder,
		logger:      logger,
	}, nil
}

// GetActive returns the active deck handle
func (p *Pool) GetActive() backends.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decks[p.active]
}

// GetInactive returns the inactive deck handle
func (p *Pool) GetInactive() backends.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decks[p.active.Other()]
}

// ActiveLabel returns the label of the active deck
func (p *Pool) ActiveLabel() Label {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Deck returns the handle with the given label
func (p *Pool) Deck(l Label) backends.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decks[l]
}

// Song returns the song last assigned to a deck
func (p *Pool) Song(l Label) (playlist.Song, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.songs[l]
	return s, ok
}

// Placeholder returns the neutral silent source
func (p *Pool) Placeholder() string {
	return p.placeholder
}

// Primed reports whether Prime has succeeded
func (p *Pool) Primed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.primed
}

// Priming reports whether a prime cycle is in progress
func (p *Pool) Priming() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.priming
}

func (p *Pool) setPriming(v bool) {
	p.mu.Lock()
	p.priming = v
	p.mu.Unlock()
}

// LoadOnActive assigns song to the active deck and reloads it. Decode
// failures arrive later as an Error event on the handle.
func (p *Pool) LoadOnActive(song playlist.Song) {
	h := p.GetActive()
	h.SetSource(song.URL)
	h.Load()
	if h.Volume() == 0 {
		h.SetVolume(1)
	}

	p.mu.Lock()
	p.songs[p.active] = song
	p.mu.Unlock()
	p.logger.Debug("loaded on active deck", "deck", p.ActiveLabel(), "url", song.URL)
}

// PreloadOnInactive assigns song to the inactive deck, starts loading and
// keeps it silent.
func (p *Pool) PreloadOnInactive(song playlist.Song) {
	h := p.GetInactive()
	h.SetVolume(0)
	h.SetSource(song.URL)
	h.Load()

	p.mu.Lock()
	p.songs[p.active.Other()] = song
	p.mu.Unlock()
	p.logger.Debug("preloaded on inactive deck", "deck", p.ActiveLabel().Other(), "url", song.URL)
}

// swap flips the active deck. Only the crossfade controller calls it.
func (p *Pool) swap() {
	p.mu.Lock()
	p.active = p.active.Other()
	p.mu.Unlock()
}

// park stops and rewinds a deck, zeroes its volume and parks it on the
// silent placeholder.
func (p *Pool) park(l Label) {
	h := p.Deck(l)
	h.Pause()
	_ = h.SetPosition(0)
	h.SetVolume(0)
	h.SetSource(p.placeholder)
	h.Load()

	p.mu.Lock()
	delete(p.songs, l)
	p.mu.Unlock()
}

// Prime runs a silent play/pause cycle on the inactive deck so that later
// plays are allowed by the output. The prior source and volume are put back
// afterwards. Once it has succeeded further calls do nothing.
func (p *Pool) Prime() error {
	if p.Primed() {
		return nil
	}

	h := p.GetInactive()
	prevSource := h.Source()
	prevVolume := h.Volume()

	h.SetVolume(0)
	h.SetSource(p.placeholder)
	h.Load()
	err := h.Play()
	h.Pause()

	h.SetSource(prevSource)
	if prevSource != "" && prevSource != p.placeholder {
		h.Load()
	}
	h.SetVolume(prevVolume)

	if err != nil {
		return fmt.Errorf("prime deck %s: %w", p.ActiveLabel().Other(), err)
	}

	p.mu.Lock()
	p.primed = true
	p.mu.Unlock()
	return nil
}
