package mpd

import (
	"fmt"
	"strings"
)

// MPD ACK error codes
const (
	ackArg     = 2
	ackUnknown = 5
	ackNoExist = 50
)

func ack(code int, command, msg string) string {
	return fmt.Sprintf("ACK [%d@0] {%s} %s\n", code, command, msg)
}

// handleCommand processes a single MPD command
func (s *Server) handleCommand(line string) string {
	command, args := parseCommand(line)
	if command == "" {
		return "OK\n"
	}

	switch command {
	case "ping":
		return "OK\n"

	case "add":
		return s.cmdAdd(args)

	case "addid":
		return s.cmdAddId(args)

	case "play":
		return s.cmdPlay(args)

	case "pause":
		return s.cmdPause(args)

	case "stop":
		return s.cmdStop(args)

	case "next":
		return s.cmdNext(args)

	case "previous":
		return s.cmdPrevious(args)

	case "seek":
		return s.cmdSeek(args)

	case "seekcur":
		return s.cmdSeekCur(args)

	case "crossfade":
		return s.cmdCrossfade(args)

	case "status":
		return s.cmdStatus(args)

	case "playlistinfo":
		return s.cmdPlaylistInfo(args)

	case "clear":
		return s.cmdClear(args)

	case "currentsong":
		return s.cmdCurrentSong(args)

	case "plchanges":
		return s.cmdPlChanges(args)

	case "tagtypes":
		return s.cmdTagTypes(args)

	case "outputs":
		return s.cmdOutputs(args)

	case "decoders":
		return s.cmdDecoders(args)

	case "single", "consume", "repeat", "random":
		return s.cmdUnsupportedMode(command, args)

	default:
		return ack(ackUnknown, command, "unknown command")
	}
}

// parseCommand splits a command line into a lowercased command and its
// arguments. Double-quoted arguments may contain spaces and backslash
// escapes.
func parseCommand(line string) (string, []string) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return "", nil
	}
	rest := args[1:]
	if len(rest) == 0 {
		rest = nil
	}
	return strings.ToLower(args[0]), rest
}
