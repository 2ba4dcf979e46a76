package mpd

import (
	"fmt"
	"strconv"
	"strings"
)

// cmdAdd handles the 'add' command
// add {URI} [POS]
func (s *Server) cmdAdd(args []string) string {
	if len(args) == 0 {
		return ack(ackArg, "add", "missing URI")
	}
	if _, failed := s.addTrack("add", args); failed != "" {
		return failed
	}
	return "OK\n"
}

// cmdAddId handles the 'addid' command
// Like 'add' but returns the ID of the added song
func (s *Server) cmdAddId(args []string) string {
	if len(args) == 0 {
		return ack(ackArg, "addid", "missing URI")
	}
	pos, failed := s.addTrack("addid", args)
	if failed != "" {
		return failed
	}
	return fmt.Sprintf("Id: %d\nOK\n", pos)
}

// addTrack queues args[0], at args[1] when given. It returns the queue
// position, or an ACK response.
func (s *Server) addTrack(command string, args []string) (int, string) {
	uri := args[0]
	if len(args) < 2 {
		s.player.AddURLs([]string{uri})
		return s.player.GetPlaylist().Length() - 1, ""
	}

	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, ack(ackArg, command, "invalid position")
	}
	if _, err := s.player.AddURLAt(uri, pos); err != nil {
		return 0, ack(ackArg, command, err.Error())
	}
	return pos, ""
}

// cmdClear handles the 'clear' command
func (s *Server) cmdClear(_ []string) string {
	s.player.Clear()
	return "OK\n"
}

// cmdPlaylistInfo handles the 'playlistinfo' command
func (s *Server) cmdPlaylistInfo(_ []string) string {
	var info strings.Builder
	for i, song := range s.player.GetPlaylist().GetAll() {
		info.WriteString(s.formatTrackInfo(song, i))
	}
	info.WriteString("OK\n")
	return info.String()
}

// cmdCurrentSong handles the 'currentsong' command
func (s *Server) cmdCurrentSong(_ []string) string {
	pl := s.player.GetPlaylist()
	song, err := pl.Current()
	if err != nil {
		return "OK\n" // No current song
	}
	return s.formatTrackInfo(song, pl.CurrentIndex()) + "OK\n"
}

// cmdPlChanges handles the 'plchanges' command.
// The queue keeps no change log, so any older version gets the whole queue.
func (s *Server) cmdPlChanges(args []string) string {
	if len(args) == 0 {
		return ack(ackArg, "plchanges", "missing playlist version argument")
	}
	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return ack(ackArg, "plchanges", "invalid playlist version number")
	}
	if uint32(version) == s.player.GetPlaylist().Version() {
		return "OK\n"
	}
	return s.cmdPlaylistInfo(nil)
}
