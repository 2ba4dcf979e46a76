package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/famish99/deckd/internal/playlist"
)

// AddURLs adds URLs to the queue and prepares them in the background
func (p *Player) AddURLs(urls []string) []playlist.Song {
	songs := p.pl.AddMultiple(urls)
	p.logger.Info("added songs", "count", len(songs))

	for _, s := range songs {
		go p.prepare(s)
	}
	p.notify("playlist")
	return songs
}

// AddURLAt inserts a URL at position and prepares it in the background
func (p *Player) AddURLAt(url string, position int) (playlist.Song, error) {
	song, err := p.pl.AddAt(url, position)
	if err != nil {
		return playlist.Song{}, err
	}
	p.logger.Info("added song", "position", position, "url", url)

	go p.prepare(song)
	p.notify("playlist")
	return song, nil
}

// Clear stops playback and empties the queue
func (p *Player) Clear() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.eng.Stop()
	p.pl.Clear()
	p.notify("playlist", "player")
}

// Play starts playback at the cursor. A song already on the active deck
// resumes where it was; otherwise the cursor's song is loaded.
func (p *Player) Play() error {
	if p.pl.Length() == 0 {
		return ErrEmptyQueue
	}
	song, err := p.pl.Current()
	if err != nil {
		if song, err = p.pl.Seek(0); err != nil {
			return err
		}
	}

	if now := p.eng.NowPlaying(); now.ID == song.ID && p.eng.Active().Source() == song.URL {
		p.mu.Lock()
		p.stopped = false
		p.mu.Unlock()
		p.eng.Play()
		p.notify("player")
		return nil
	}

	p.logger.Info("playing", "position", p.pl.CurrentIndex(), "title", song.Title)
	p.hardCut(song, true)
	return nil
}

// PlayAt hard cuts to the song at position and plays it
func (p *Player) PlayAt(position int) error {
	song, err := p.pl.Seek(position)
	if err != nil {
		return fmt.Errorf("failed to seek to position %d: %w", position, err)
	}
	p.logger.Info("playing", "position", position, "title", song.Title)
	p.hardCut(song, true)
	return nil
}

// Pause pauses playback (can be resumed with Resume)
func (p *Player) Pause() {
	p.eng.Pause()
	p.notify("player")
}

// Resume resumes playback from pause
func (p *Player) Resume() error {
	return p.Play()
}

// Stop stops playback and rewinds the current song
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.eng.Stop()
	p.notify("player")
}

// Next moves to the next song: a short crossfade while playing, otherwise a
// hard cut.
func (p *Player) Next() error {
	song, err := p.pl.PeekNext()
	if err != nil {
		return err
	}
	p.skipTo(song)
	return nil
}

// Previous moves to the previous song the same way as Next
func (p *Player) Previous() error {
	song, err := p.pl.PeekPrevious()
	if err != nil {
		return err
	}
	p.skipTo(song)
	return nil
}

func (p *Player) skipTo(song playlist.Song) {
	p.mu.Lock()
	skip := p.skipCrossfade
	p.mu.Unlock()

	playing := p.eng.Playing()
	if playing && skip > 0 && !p.eng.InCrossfade() {
		p.logger.Debug("skip crossfade", "to", song.Title, "seconds", skip.Seconds())
		p.startCrossfade(song, skip)
		return
	}
	p.hardCut(song, playing)
}

// Seek seeks to an absolute position within the current song
func (p *Player) Seek(position time.Duration) error {
	if p.GetState() == StateStopped {
		return errors.New("not playing or paused")
	}
	if position < 0 {
		position = 0
	}
	p.logger.Debug("seeking", "position", position)
	p.eng.Seek(position)
	p.notify("player")
	return nil
}

// SeekCur seeks relative to the current position
func (p *Player) SeekCur(offset time.Duration) error {
	return p.Seek(p.eng.Active().Position() + offset)
}

// SetCrossfade sets the near-end crossfade length, 0 for hard cuts
func (p *Player) SetCrossfade(d time.Duration) error {
	if d < 0 {
		return ErrInvalidCrossfade
	}
	p.mu.Lock()
	p.crossfade = d
	p.mu.Unlock()

	p.logger.Info("crossfade set", "seconds", d.Seconds())
	p.notify("options")
	return nil
}

// SetSkipCrossfade sets the crossfade used by Next and Previous
func (p *Player) SetSkipCrossfade(d time.Duration) error {
	if d < 0 {
		return ErrInvalidCrossfade
	}
	p.mu.Lock()
	p.skipCrossfade = d
	p.mu.Unlock()
	return nil
}

// Crossfade returns the near-end crossfade length
func (p *Player) Crossfade() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.crossfade
}
