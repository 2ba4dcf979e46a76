package mpd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/charmbracelet/log"
)

const greeting = "OK MPD 0.23.5\n"

// commandList buffers commands between command_list_begin and
// command_list_end
type commandList struct {
	ok    bool // command_list_ok_begin: list_OK after each command
	lines []string
}

// handleConnection handles a single MPD client connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With("client", conn.RemoteAddr().String())
	logger.Info("MPD client connected")
	defer logger.Info("MPD client disconnected")

	fmt.Fprint(conn, greeting)

	done := make(chan struct{})
	defer close(done)
	lines := readLines(conn, done, logger)

	var list *commandList
	for line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		logger.Debug("MPD command", "line", line)

		switch line {
		case "command_list_begin", "command_list_ok_begin":
			list = &commandList{ok: line == "command_list_ok_begin"}
			continue
		case "command_list_end":
			if list != nil {
				fmt.Fprint(conn, s.runCommandList(list))
				list = nil
			}
			continue
		}
		if list != nil {
			list.lines = append(list.lines, line)
			continue
		}

		cmd, args := parseCommand(line)
		switch cmd {
		case "close":
			return
		case "idle":
			response, ok := s.waitIdle(args, lines)
			if !ok {
				return
			}
			fmt.Fprint(conn, response)
		case "noidle":
			// Not idling, nothing pending
			fmt.Fprint(conn, "OK\n")
		default:
			fmt.Fprint(conn, s.handleCommand(line))
		}
	}
}

// readLines feeds client lines to the connection loop so an idle wait can
// still see noidle
func readLines(r io.Reader, done <-chan struct{}, logger *log.Logger) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Debug("connection read error", "err", err)
		}
	}()
	return lines
}

// runCommandList executes buffered commands, stopping at the first error.
// The ACK carries the index of the failing command.
func (s *Server) runCommandList(list *commandList) string {
	var out strings.Builder
	for i, line := range list.lines {
		response := s.handleCommand(line)
		if strings.HasPrefix(response, "ACK ") {
			out.WriteString(strings.Replace(response, "@0]", fmt.Sprintf("@%d]", i), 1))
			return out.String()
		}
		out.WriteString(strings.TrimSuffix(response, "OK\n"))
		if list.ok {
			out.WriteString("list_OK\n")
		}
	}
	out.WriteString("OK\n")
	return out.String()
}

// waitIdle blocks until a watched subsystem changes, noidle arrives or the
// server stops. It returns false when the client must be disconnected.
func (s *Server) waitIdle(args []string, lines <-chan string) (string, bool) {
	subsystems := make([]string, len(args))
	for i, a := range args {
		subsystems[i] = strings.ToLower(a)
	}
	idle := newIdleConnection(subsystems)
	s.registerIdle(idle)
	defer s.unregisterIdle(idle)

	select {
	case subsystem := <-idle.notify:
		return changedResponse(subsystem, idle.notify), true
	case <-idle.cancel:
		return "OK\n", true
	case line, ok := <-lines:
		if !ok {
			return "", false
		}
		if strings.TrimSpace(line) != "noidle" {
			// Only noidle is allowed while idle
			s.logger.Warn("command while idle, closing", "line", line)
			return "", false
		}
		select {
		case subsystem := <-idle.notify:
			return changedResponse(subsystem, idle.notify), true
		default:
			return "OK\n", true
		}
	}
}

// changedResponse reports first plus anything else already queued, once each
func changedResponse(first string, pending <-chan string) string {
	seen := map[string]bool{first: true}
	var out strings.Builder
	fmt.Fprintf(&out, "changed: %s\n", first)
	for {
		select {
		case s := <-pending:
			if !seen[s] {
				seen[s] = true
				fmt.Fprintf(&out, "changed: %s\n", s)
			}
		default:
			out.WriteString("OK\n")
			return out.String()
		}
	}
}
