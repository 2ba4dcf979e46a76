package playlist

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrEmpty         = errors.New("playlist is empty")
	ErrNoCurrent     = errors.New("no current song")
	ErrEndOfPlaylist = errors.New("end of playlist")
	ErrStartOfList   = errors.New("beginning of playlist")
	ErrNotFound      = errors.New("song not found")
)

// Song is a playable entry. Decks only ever see URL; the rest is display
// metadata for the media surfaces.
type Song struct {
	ID       string
	URL      string
	Title    string
	Artist   string
	Album    string
	Artwork  string
	Duration time.Duration // 0 when unknown
	Metadata map[string]string
}

// NewSong creates a song with a fresh ID. The title defaults to the base
// name of the URL until real metadata is read.
func NewSong(url string) Song {
	return Song{
		ID:       uuid.NewString(),
		URL:      url,
		Title:    titleFromURL(url),
		Metadata: make(map[string]string),
	}
}

// IsZero reports whether s is the zero Song.
func (s Song) IsZero() bool {
	return s.ID == "" && s.URL == ""
}

func titleFromURL(url string) string {
	base := path.Base(strings.TrimRight(url, "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" {
		return url
	}
	return base
}

// Playlist manages an ordered queue of songs with a cursor
type Playlist struct {
	mu      sync.RWMutex
	songs   []Song
	current int
	version uint32 // Bumped on every queue change, reported by MPD status
}

// NewPlaylist creates a new empty playlist
func NewPlaylist() *Playlist {
	return &Playlist{
		songs:   make([]Song, 0),
		current: -1,
	}
}

// Add appends a song for url and returns it
func (p *Playlist) Add(url string) Song {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := NewSong(url)
	p.songs = append(p.songs, s)
	p.version++
	return s
}

// AddAt inserts a song for url at pos. The cursor keeps pointing at the
// same song.
func (p *Playlist) AddAt(url string, pos int) (Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pos < 0 || pos > len(p.songs) {
		return Song{}, fmt.Errorf("invalid position %d: %w", pos, ErrNotFound)
	}

	s := NewSong(url)
	p.songs = append(p.songs, Song{})
	copy(p.songs[pos+1:], p.songs[pos:])
	p.songs[pos] = s
	if p.current >= pos {
		p.current++
	}
	p.version++
	return s, nil
}

// AddMultiple appends a song per URL
func (p *Playlist) AddMultiple(urls []string) []Song {
	return lo.Map(urls, func(url string, _ int) Song { return p.Add(url) })
}

// Clear removes all songs
func (p *Playlist) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.songs = make([]Song, 0)
	p.current = -1
	p.version++
}

// Current returns the song under the cursor
func (p *Playlist) Current() (Song, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.current < 0 || p.current >= len(p.songs) {
		return Song{}, ErrNoCurrent
	}
	return p.songs[p.current], nil
}

// PeekNext returns the song after the cursor without moving it
func (p *Playlist) PeekNext() (Song, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.songs) == 0 {
		return Song{}, ErrEmpty
	}
	if p.current+1 >= len(p.songs) {
		return Song{}, ErrEndOfPlaylist
	}
	return p.songs[p.current+1], nil
}

// PeekPrevious returns the song before the cursor without moving it
func (p *Playlist) PeekPrevious() (Song, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.songs) == 0 {
		return Song{}, ErrEmpty
	}
	if p.current <= 0 {
		return Song{}, ErrStartOfList
	}
	return p.songs[p.current-1], nil
}

// Next moves to the next song and returns it. At the end the cursor stays
// on the last song.
func (p *Playlist) Next() (Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.songs) == 0 {
		return Song{}, ErrEmpty
	}
	if p.current+1 >= len(p.songs) {
		return Song{}, ErrEndOfPlaylist
	}
	p.current++
	return p.songs[p.current], nil
}

// Previous moves to the previous song and returns it
func (p *Playlist) Previous() (Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.songs) == 0 {
		return Song{}, ErrEmpty
	}
	if p.current <= 0 {
		return Song{}, ErrStartOfList
	}
	p.current--
	return p.songs[p.current], nil
}

// Seek moves the cursor to a specific index
func (p *Playlist) Seek(index int) (Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.songs) {
		return Song{}, fmt.Errorf("invalid song index %d: %w", index, ErrNotFound)
	}
	p.current = index
	return p.songs[p.current], nil
}

// SeekID moves the cursor to the song with the given ID
func (p *Playlist) SeekID(id string) (Song, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(p.songs, func(s Song) bool { return s.ID == id })
	if !ok {
		return Song{}, fmt.Errorf("song %s: %w", id, ErrNotFound)
	}
	p.current = idx
	return p.songs[idx], nil
}

// IndexOf returns the position of the song with the given ID, or -1
func (p *Playlist) IndexOf(id string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, idx, ok := lo.FindIndexOf(p.songs, func(s Song) bool { return s.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// UpdateMetadata applies fn to the song with the given ID. Returns false if
// the song is no longer queued.
func (p *Playlist) UpdateMetadata(id string, fn func(*Song)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.songs {
		if p.songs[i].ID == id {
			fn(&p.songs[i])
			p.version++
			return true
		}
	}
	return false
}

// Length returns the number of songs
func (p *Playlist) Length() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.songs)
}

// GetAll returns a copy of all songs
func (p *Playlist) GetAll() []Song {
	p.mu.RLock()
	defer p.mu.RUnlock()

	songs := make([]Song, len(p.songs))
	copy(songs, p.songs)
	return songs
}

// HasNext returns true if there are more songs after the cursor
func (p *Playlist) HasNext() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current+1 < len(p.songs)
}

// CurrentIndex returns the cursor position, -1 when unset
func (p *Playlist) CurrentIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Version returns the queue version
func (p *Playlist) Version() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}
