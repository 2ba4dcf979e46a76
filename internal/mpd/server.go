// Package mpd serves the queue and transport over the MPD protocol. The
// server is also a media session surface: transport commands go through the
// bound action handlers so they share debouncing with the other surfaces.
package mpd

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/player"
)

// ErrServerRunning is returned by Start on a running server
var ErrServerRunning = errors.New("server already running")

// Options configure a Server
type Options struct {
	OutputName string // Shown by the outputs command
	Logger     *log.Logger
}

// Server implements MPD protocol server
type Server struct {
	mu       sync.Mutex
	listener net.Listener
	player   *player.Player
	addr     string
	running  bool
	output   string
	logger   *log.Logger

	enabledTags map[string]bool // Track which tag types are enabled
	tagTypesMu  sync.RWMutex    // Protects enabledTags

	// Idle connection management
	idleMu    sync.RWMutex
	idleConns map[*idleConnection]bool

	// Media session surface state
	surfaceMu sync.Mutex
	session   surfaceState
}

// NewServer creates a new MPD protocol server for p
func NewServer(addr string, p *player.Player, opts Options) *Server {
	logger := logging.OrDefault(opts.Logger)
	output := opts.OutputName
	if output == "" {
		output = "deckd"
	}

	// Initialize with all tags enabled by default
	enabledTags := make(map[string]bool, len(metadataFields))
	for _, f := range metadataFields {
		enabledTags[f.tag] = true
	}

	s := &Server{
		addr:        addr,
		player:      p,
		output:      output,
		logger:      logger,
		enabledTags: enabledTags,
		idleConns:   make(map[*idleConnection]bool),
		session:     newSurfaceState(),
	}

	// Set up player notification callback for idle connections
	p.SetNotifySubsystem(s.NotifySubsystemChange)
	return s
}

// Start starts the MPD server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start MPD server: %w", err)
	}

	s.listener = listener
	s.running = true

	s.logger.Info("MPD server listening", "addr", listener.Addr())

	go s.acceptLoop(listener)

	return nil
}

// Addr returns the listening address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the MPD server. Connected clients are released from idle.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	err := s.listener.Close()
	s.mu.Unlock()

	s.cancelIdle()
	return err
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			s.logger.Warn("accept error", "err", err)
			continue
		}

		go s.handleConnection(conn)
	}
}
