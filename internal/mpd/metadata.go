package mpd

import (
	"fmt"
	"strings"

	"github.com/famish99/deckd/internal/playlist"
)

// metadataFields maps internal tag names to MPD field names, in output order
var metadataFields = []struct {
	tag   string
	field string
}{
	{"artist", "Artist"},
	{"albumartist", "AlbumArtist"},
	{"album", "Album"},
	{"title", "Title"},
	{"track", "Track"},
	{"name", "Name"},
	{"genre", "Genre"},
	{"date", "Date"},
	{"composer", "Composer"},
	{"performer", "Performer"},
	{"disc", "Disc"},
}

// decoderInfo represents a decoder plugin with its supported formats
type decoderInfo struct {
	plugin    string
	suffixes  []string
	mimeTypes []string
}

// supportedDecoders lists the formats ffmpeg decodes for the decks
var supportedDecoders = []decoderInfo{
	{plugin: "flac", suffixes: []string{"flac"}, mimeTypes: []string{"audio/flac", "audio/x-flac"}},
	{plugin: "mp3", suffixes: []string{"mp3", "mp2"}, mimeTypes: []string{"audio/mpeg"}},
	{plugin: "aac", suffixes: []string{"aac", "m4a", "mp4"}, mimeTypes: []string{"audio/aac", "audio/mp4", "audio/x-m4a"}},
	{plugin: "vorbis", suffixes: []string{"ogg", "oga"}, mimeTypes: []string{"audio/ogg", "audio/vorbis", "application/ogg"}},
	{plugin: "opus", suffixes: []string{"opus"}, mimeTypes: []string{"audio/opus"}},
	{plugin: "wav", suffixes: []string{"wav"}, mimeTypes: []string{"audio/wav", "audio/x-wav"}},
	{plugin: "aiff", suffixes: []string{"aiff", "aif"}, mimeTypes: []string{"audio/aiff", "audio/x-aiff"}},
}

// songTag returns a display tag, preferring the song's own fields
func songTag(song playlist.Song, tag string) string {
	switch tag {
	case "title":
		return song.Title
	case "artist":
		return song.Artist
	case "album":
		return song.Album
	}
	return song.Metadata[tag]
}

// formatTrackInfo formats a queued song for the MPD protocol. Only tags
// enabled via tagtypes are included.
func (s *Server) formatTrackInfo(song playlist.Song, pos int) string {
	var info strings.Builder

	fmt.Fprintf(&info, "file: %s\n", song.URL)

	s.tagTypesMu.RLock()
	for _, f := range metadataFields {
		if !s.enabledTags[f.tag] {
			continue
		}
		if value := songTag(song, f.tag); value != "" {
			fmt.Fprintf(&info, "%s: %s\n", f.field, value)
		}
	}
	s.tagTypesMu.RUnlock()

	if song.Duration > 0 {
		fmt.Fprintf(&info, "Time: %d\n", int(song.Duration.Seconds()))
		fmt.Fprintf(&info, "duration: %.3f\n", song.Duration.Seconds())
	}

	// Position and ID - always output
	fmt.Fprintf(&info, "Pos: %d\n", pos)
	fmt.Fprintf(&info, "Id: %d\n", pos)

	return info.String()
}

// cmdTagTypes handles the 'tagtypes' command
// Controls which metadata tags are returned in responses
func (s *Server) cmdTagTypes(args []string) string {
	if len(args) == 0 {
		s.tagTypesMu.RLock()
		defer s.tagTypesMu.RUnlock()

		var response strings.Builder
		for _, f := range metadataFields {
			if s.enabledTags[f.tag] {
				fmt.Fprintf(&response, "tagtype: %s\n", f.field)
			}
		}
		response.WriteString("OK\n")
		return response.String()
	}

	s.tagTypesMu.Lock()
	defer s.tagTypesMu.Unlock()

	switch sub := strings.ToLower(args[0]); sub {
	case "clear", "all":
		for tag := range s.enabledTags {
			s.enabledTags[tag] = sub == "all"
		}
	case "enable", "disable":
		for _, tag := range args[1:] {
			tag = strings.ToLower(tag)
			if _, known := s.enabledTags[tag]; !known {
				return ack(ackArg, "tagtypes", "unknown tag type: "+tag)
			}
			s.enabledTags[tag] = sub == "enable"
		}
	default:
		return ack(ackArg, "tagtypes", "unknown subcommand: "+sub)
	}
	return "OK\n"
}

// cmdDecoders handles the 'decoders' command
func (s *Server) cmdDecoders(_ []string) string {
	var response strings.Builder
	for _, decoder := range supportedDecoders {
		fmt.Fprintf(&response, "plugin: %s\n", decoder.plugin)
		for _, suffix := range decoder.suffixes {
			fmt.Fprintf(&response, "suffix: %s\n", suffix)
		}
		for _, mimeType := range decoder.mimeTypes {
			fmt.Fprintf(&response, "mime_type: %s\n", mimeType)
		}
	}
	response.WriteString("OK\n")
	return response.String()
}
