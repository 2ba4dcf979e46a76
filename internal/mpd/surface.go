package mpd

import (
	"github.com/famish99/deckd/internal/mediasession"
)

var _ mediasession.Surface = (*Server)(nil)

// surfaceState is what the synchronizer last published, guarded by
// Server.surfaceMu
type surfaceState struct {
	handlers map[mediasession.Action]mediasession.Handler
	metadata mediasession.Metadata
	state    mediasession.PlaybackState
	position mediasession.PositionState
}

func newSurfaceState() surfaceState {
	return surfaceState{handlers: make(map[mediasession.Action]mediasession.Handler)}
}

func (s *Server) SetMetadata(md mediasession.Metadata) {
	s.surfaceMu.Lock()
	changed := s.session.metadata != md
	s.session.metadata = md
	s.surfaceMu.Unlock()

	if changed {
		s.NotifySubsystemChange("player")
	}
}

func (s *Server) SetPlaybackState(st mediasession.PlaybackState) {
	s.surfaceMu.Lock()
	changed := s.session.state != st
	s.session.state = st
	s.surfaceMu.Unlock()

	if changed {
		s.NotifySubsystemChange("player")
	}
}

func (s *Server) SetPositionState(ps mediasession.PositionState) {
	s.surfaceMu.Lock()
	s.session.position = ps
	s.surfaceMu.Unlock()
}

func (s *Server) SetActionHandler(a mediasession.Action, h mediasession.Handler) {
	s.surfaceMu.Lock()
	defer s.surfaceMu.Unlock()
	if h == nil {
		delete(s.session.handlers, a)
		return
	}
	s.session.handlers[a] = h
}

// invoke runs the handler bound to d.Action. It reports false when nothing
// is bound, in which case the caller drives the player directly.
func (s *Server) invoke(d mediasession.ActionDetails) bool {
	s.surfaceMu.Lock()
	h := s.session.handlers[d.Action]
	s.surfaceMu.Unlock()

	if h == nil {
		return false
	}
	s.logger.Debug("media action", "action", d.Action)
	h(d)
	return true
}
