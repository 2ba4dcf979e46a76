package mpd

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/famish99/deckd/internal/mediasession"
	"github.com/famish99/deckd/internal/player"
)

// cmdPlay handles the 'play' command
// play [POS] - start playback at optional position
func (s *Server) cmdPlay(args []string) string {
	if len(args) > 0 {
		pos, err := strconv.Atoi(args[0])
		if err != nil {
			return ack(ackArg, "play", "invalid position")
		}
		if err := s.player.PlayAt(pos); err != nil {
			return ack(ackNoExist, "play", err.Error())
		}
		return "OK\n"
	}

	switch s.player.GetState() {
	case player.StatePlaying:
		return "OK\n"
	case player.StatePaused:
		s.resume()
		return "OK\n"
	}

	// Stopped: the cursor's song has to be loaded first
	if err := s.player.Play(); err != nil {
		return ack(ackNoExist, "play", err.Error())
	}
	return "OK\n"
}

// cmdPause handles the 'pause' command
// pause 0 = resume, pause 1 = pause, no arg = toggle
func (s *Server) cmdPause(args []string) string {
	state := s.player.GetState()

	var shouldPause bool
	if len(args) > 0 {
		if args[0] != "0" && args[0] != "1" {
			return ack(ackArg, "pause", "invalid argument")
		}
		shouldPause = args[0] == "1"
	} else {
		shouldPause = state == player.StatePlaying
	}

	if state == player.StateStopped {
		return "OK\n"
	}
	if shouldPause {
		if !s.invoke(mediasession.ActionDetails{Action: mediasession.ActionPause}) {
			s.player.Pause()
		}
		return "OK\n"
	}
	s.resume()
	return "OK\n"
}

func (s *Server) resume() {
	if s.invoke(mediasession.ActionDetails{Action: mediasession.ActionPlay}) {
		return
	}
	if err := s.player.Resume(); err != nil {
		s.logger.Warn("resume failed", "err", err)
	}
}

// cmdStop handles the 'stop' command
func (s *Server) cmdStop(_ []string) string {
	s.player.Stop()
	return "OK\n"
}

// cmdNext handles the 'next' command
func (s *Server) cmdNext(_ []string) string {
	if _, err := s.player.GetPlaylist().PeekNext(); err != nil {
		return ack(ackNoExist, "next", err.Error())
	}
	if s.invoke(mediasession.ActionDetails{Action: mediasession.ActionNextTrack}) {
		return "OK\n"
	}
	if err := s.player.Next(); err != nil {
		return ack(ackNoExist, "next", err.Error())
	}
	return "OK\n"
}

// cmdPrevious handles the 'previous' command
func (s *Server) cmdPrevious(_ []string) string {
	if _, err := s.player.GetPlaylist().PeekPrevious(); err != nil {
		return ack(ackNoExist, "previous", err.Error())
	}
	if s.invoke(mediasession.ActionDetails{Action: mediasession.ActionPreviousTrack}) {
		return "OK\n"
	}
	if err := s.player.Previous(); err != nil {
		return ack(ackNoExist, "previous", err.Error())
	}
	return "OK\n"
}

// cmdSeek handles the 'seek' command
// seek {SONGPOS} {TIME} - seek to TIME (in seconds) within song SONGPOS
func (s *Server) cmdSeek(args []string) string {
	if len(args) < 2 {
		return ack(ackArg, "seek", "missing arguments")
	}
	pos, err := strconv.Atoi(args[0])
	if err != nil {
		return ack(ackArg, "seek", "invalid song position")
	}
	seconds, err := parseSeconds(args[1])
	if err != nil || seconds < 0 {
		return ack(ackArg, "seek", "invalid time")
	}

	// Only the current song is loaded
	if current := s.player.GetPlaylist().CurrentIndex(); pos != current {
		return ack(ackArg, "seek", "can only seek within the current song")
	}
	return s.seekTo("seek", seconds)
}

// cmdSeekCur handles the 'seekcur' command
// seekcur {TIME} - absolute, or relative when prefixed with + or -
func (s *Server) cmdSeekCur(args []string) string {
	if len(args) < 1 {
		return ack(ackArg, "seekcur", "missing argument")
	}
	arg := args[0]
	seconds, err := parseSeconds(arg)
	if err != nil {
		return ack(ackArg, "seekcur", "invalid time")
	}

	if arg[0] == '+' || arg[0] == '-' {
		elapsed := s.player.Engine().Active().Position().Seconds()
		seconds = math.Max(elapsed+seconds, 0)
	} else if seconds < 0 {
		return ack(ackArg, "seekcur", "invalid time")
	}
	return s.seekTo("seekcur", seconds)
}

func (s *Server) seekTo(command string, seconds float64) string {
	if s.player.GetState() == player.StateStopped {
		return ack(ackNoExist, command, "not playing")
	}
	if s.invoke(mediasession.ActionDetails{Action: mediasession.ActionSeekTo, SeekTime: seconds}) {
		return "OK\n"
	}
	if err := s.player.Seek(time.Duration(seconds * float64(time.Second))); err != nil {
		return ack(ackNoExist, command, err.Error())
	}
	return "OK\n"
}

// cmdCrossfade handles the 'crossfade' command
// crossfade [SECONDS] - near-end crossfade length, 0 disables it. Without
// an argument the current length is reported.
func (s *Server) cmdCrossfade(args []string) string {
	if len(args) < 1 {
		return fmt.Sprintf("xfade: %d\nOK\n", int(s.player.Crossfade().Seconds()))
	}
	seconds, err := parseSeconds(args[0])
	if err != nil {
		return ack(ackArg, "crossfade", "invalid seconds")
	}
	if err := s.player.SetCrossfade(time.Duration(seconds * float64(time.Second))); err != nil {
		return ack(ackArg, "crossfade", err.Error())
	}
	return "OK\n"
}

// parseSeconds accepts integer or fractional seconds ("120", "120.5")
func parseSeconds(arg string) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
