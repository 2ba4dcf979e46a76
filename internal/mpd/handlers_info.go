package mpd

import (
	"fmt"
	"strings"
)

// cmdStatus handles the 'status' command
func (s *Server) cmdStatus(_ []string) string {
	pl := s.player.GetPlaylist()

	var status strings.Builder
	status.WriteString("volume: 100\n")
	status.WriteString("repeat: 0\n")
	status.WriteString("random: 0\n")
	status.WriteString("single: 0\n")
	status.WriteString("consume: 0\n")
	fmt.Fprintf(&status, "playlist: %d\n", pl.Version())
	fmt.Fprintf(&status, "playlistlength: %d\n", pl.Length())
	fmt.Fprintf(&status, "xfade: %d\n", int(s.player.Crossfade().Seconds()))

	state := s.player.GetState()
	fmt.Fprintf(&status, "state: %s\n", state)

	if idx := pl.CurrentIndex(); idx >= 0 && idx < pl.Length() {
		fmt.Fprintf(&status, "song: %d\n", idx)
		fmt.Fprintf(&status, "songid: %d\n", idx)
	}
	if idx := pl.CurrentIndex() + 1; idx < pl.Length() {
		fmt.Fprintf(&status, "nextsong: %d\n", idx)
		fmt.Fprintf(&status, "nextsongid: %d\n", idx)
	}

	if timing := s.player.GetPlaybackTiming(); timing != nil {
		// Legacy "time" field is elapsed:total in whole seconds
		fmt.Fprintf(&status, "time: %d:%d\n", int(timing.Elapsed.Seconds()), int(timing.Duration.Seconds()))
		fmt.Fprintf(&status, "elapsed: %.3f\n", timing.Elapsed.Seconds())
		fmt.Fprintf(&status, "duration: %.3f\n", timing.Duration.Seconds())
	}

	status.WriteString("OK\n")
	return status.String()
}

// cmdOutputs handles the 'outputs' command
func (s *Server) cmdOutputs(_ []string) string {
	var response strings.Builder
	response.WriteString("outputid: 0\n")
	fmt.Fprintf(&response, "outputname: %s\n", s.output)
	response.WriteString("plugin: beep\n")
	response.WriteString("outputenabled: 1\n")
	response.WriteString("OK\n")
	return response.String()
}

// cmdUnsupportedMode accepts single, consume, repeat and random so clients
// keep working, but the modes are not implemented
func (s *Server) cmdUnsupportedMode(command string, args []string) string {
	if len(args) == 0 {
		return ack(ackArg, command, "missing argument")
	}
	if args[0] != "0" && args[0] != "1" {
		return ack(ackArg, command, "invalid argument")
	}
	s.logger.Debug("playback mode not implemented", "mode", command, "value", args[0])
	return "OK\n"
}
