package mpd

// idleConnection represents a connection waiting in idle mode
type idleConnection struct {
	subsystems map[string]bool // Subsystems to watch (empty = all)
	notify     chan string     // Channel to send subsystem changes
	cancel     chan struct{}   // Closed by noidle or server stop
	cancelled  bool            // Guarded by Server.idleMu
}

func newIdleConnection(subsystems []string) *idleConnection {
	watch := make(map[string]bool, len(subsystems))
	for _, s := range subsystems {
		watch[s] = true
	}
	return &idleConnection{
		subsystems: watch,
		notify:     make(chan string, 10),
		cancel:     make(chan struct{}),
	}
}

// registerIdle registers an idle connection to receive notifications
func (s *Server) registerIdle(idle *idleConnection) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	s.idleConns[idle] = true
	s.logger.Debug("registered idle connection", "total", len(s.idleConns))
}

// unregisterIdle removes an idle connection from notifications
func (s *Server) unregisterIdle(idle *idleConnection) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	delete(s.idleConns, idle)
	s.logger.Debug("unregistered idle connection", "total", len(s.idleConns))
}

// stopIdle releases one idle wait; safe to call more than once
func (s *Server) stopIdle(idle *idleConnection) {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	if !idle.cancelled {
		idle.cancelled = true
		close(idle.cancel)
	}
}

func (s *Server) cancelIdle() {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()
	for idle := range s.idleConns {
		if !idle.cancelled {
			idle.cancelled = true
			close(idle.cancel)
		}
	}
}

// NotifySubsystemChange notifies all idle connections about a subsystem
// change (player, playlist, options).
func (s *Server) NotifySubsystemChange(subsystem string) {
	s.idleMu.RLock()
	defer s.idleMu.RUnlock()

	for idle := range s.idleConns {
		if len(idle.subsystems) > 0 && !idle.subsystems[subsystem] {
			continue
		}
		select {
		case idle.notify <- subsystem:
		default:
			s.logger.Warn("idle notification channel full", "subsystem", subsystem)
		}
	}
}
