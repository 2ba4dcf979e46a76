package player

import (
	"maps"

	"github.com/famish99/deckd/internal/decoder"
	"github.com/famish99/deckd/internal/playlist"
)

// prepare decodes a queued song into the cache and reads its tags so the
// crossfade finds it ready and the surfaces can show real metadata
func (p *Player) prepare(song playlist.Song) {
	if p.cache != nil && p.decode != nil {
		if _, err := p.cache.EnsureDecoded(p.ctx, song.URL, p.decode); err != nil {
			p.logger.Warn("background cache failed", "url", song.URL, "err", err)
		}
	}

	if p.tags == nil {
		return
	}
	tags, err := p.tags(p.ctx, song.URL)
	if err != nil {
		p.logger.Debug("failed to read tags", "url", song.URL, "err", err)
		return
	}

	var tagged playlist.Song
	updated := p.pl.UpdateMetadata(song.ID, func(s *playlist.Song) {
		applyTags(s, tags)
		tagged = *s
	})
	if !updated {
		return
	}
	p.notify("playlist")
	// Surfaces showing this song pick up the tags too
	p.eng.UpdateNowPlaying(tagged)
}

func applyTags(s *playlist.Song, tags map[string]string) {
	if v := tags["title"]; v != "" {
		s.Title = v
	}
	if v := tags["artist"]; v != "" {
		s.Artist = v
	}
	if v := tags["album"]; v != "" {
		s.Album = v
	}
	if d, ok := decoder.Duration(tags); ok {
		s.Duration = d
	}
	// Copies of the song share the old map, so build a new one
	meta := make(map[string]string, len(s.Metadata)+len(tags))
	maps.Copy(meta, s.Metadata)
	maps.Copy(meta, tags)
	s.Metadata = meta
}
