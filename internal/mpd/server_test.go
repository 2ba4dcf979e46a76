package mpd

import (
	"bufio"
	"io"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/clock"
	"github.com/famish99/deckd/internal/mediasession"
	"github.com/famish99/deckd/internal/player"
)

type rig struct {
	a, b *backends.Mock
	p    *player.Player
	s    *Server
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		a: backends.NewMock("A"),
		b: backends.NewMock("B"),
	}
	r.a.SetAutoReady(true)
	r.b.SetAutoReady(true)

	logger := log.New(io.Discard)
	opts := player.Options{Logger: logger}
	opts.Engine.Clock = clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p, err := player.New(r.a, r.b, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	r.p = p
	r.s = NewServer("127.0.0.1:0", p, Options{Logger: logger})
	return r
}

func (r *rig) do(t *testing.T, line string) string {
	t.Helper()
	return r.s.handleCommand(line)
}

func (r *rig) ok(t *testing.T, line string) string {
	t.Helper()
	resp := r.do(t, line)
	if !strings.HasSuffix(resp, "OK\n") || strings.HasPrefix(resp, "ACK") {
		t.Fatalf("%s = %q, want OK", line, resp)
	}
	return resp
}

// field returns the value of the first "key: value" line
func field(resp, key string) string {
	for _, line := range strings.Split(resp, "\n") {
		if v, ok := strings.CutPrefix(line, key+": "); ok {
			return v
		}
	}
	return ""
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		cmd  string
		args []string
	}{
		{"ping", "ping", nil},
		{"  STATUS  ", "status", nil},
		{`add "file:///music/My Song.flac"`, "add", []string{"file:///music/My Song.flac"}},
		{`addid "a \"quoted\" name.mp3" 2`, "addid", []string{`a "quoted" name.mp3`, "2"}},
		{`seekcur "+10"`, "seekcur", []string{"+10"}},
		{`add ""`, "add", []string{""}},
		{"", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, args := parseCommand(tt.line)
			if cmd != tt.cmd || !reflect.DeepEqual(args, tt.args) {
				t.Errorf("parseCommand(%q) = %q %q, want %q %q", tt.line, cmd, args, tt.cmd, tt.args)
			}
		})
	}
}

func TestQueueCommands(t *testing.T) {
	r := newRig(t)

	r.ok(t, `add "file:///one.flac"`)
	resp := r.ok(t, `addid "file:///two.flac"`)
	if got := field(resp, "Id"); got != "1" {
		t.Errorf("addid Id = %q, want 1", got)
	}
	resp = r.ok(t, `addid "file:///zero.flac" 0`)
	if got := field(resp, "Id"); got != "0" {
		t.Errorf("addid at 0 Id = %q, want 0", got)
	}
	if resp := r.do(t, `addid "file:///x.flac" nope`); !strings.HasPrefix(resp, "ACK [2@0] {addid}") {
		t.Errorf("addid with bad position = %q", resp)
	}

	info := r.ok(t, "playlistinfo")
	var files []string
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(line, "file: "); ok {
			files = append(files, v)
		}
	}
	want := []string{"file:///zero.flac", "file:///one.flac", "file:///two.flac"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("playlistinfo files = %v, want %v", files, want)
	}
	if !strings.Contains(info, "Title: one\n") {
		t.Errorf("playlistinfo missing default title:\n%s", info)
	}

	if got := r.ok(t, "currentsong"); got != "OK\n" {
		t.Errorf("currentsong before play = %q", got)
	}

	r.ok(t, "clear")
	if got := field(r.ok(t, "status"), "playlistlength"); got != "0" {
		t.Errorf("playlistlength after clear = %q", got)
	}
}

func TestPlaybackCommands(t *testing.T) {
	r := newRig(t)
	r.a.SetDuration(200*time.Second, true)
	r.b.SetDuration(200*time.Second, true)

	if resp := r.do(t, "play"); !strings.HasPrefix(resp, "ACK [50@0] {play}") {
		t.Errorf("play on empty queue = %q", resp)
	}

	r.ok(t, `add "file:///one.flac"`)
	r.ok(t, `add "file:///two.flac"`)
	r.ok(t, "play")

	status := r.ok(t, "status")
	if got := field(status, "state"); got != "play" {
		t.Errorf("state = %q, want play", got)
	}
	if got := field(status, "song"); got != "0" {
		t.Errorf("song = %q, want 0", got)
	}
	if got := field(status, "nextsong"); got != "1" {
		t.Errorf("nextsong = %q, want 1", got)
	}
	if got := field(status, "duration"); got != "200.000" {
		t.Errorf("duration = %q, want 200.000", got)
	}
	if got := field(r.ok(t, "currentsong"), "file"); got != "file:///one.flac" {
		t.Errorf("currentsong file = %q", got)
	}

	r.ok(t, "pause")
	if got := field(r.ok(t, "status"), "state"); got != "pause" {
		t.Errorf("state after pause = %q, want pause", got)
	}
	r.ok(t, "pause 0")
	if got := field(r.ok(t, "status"), "state"); got != "play" {
		t.Errorf("state after pause 0 = %q, want play", got)
	}

	r.ok(t, "seekcur 30")
	if got := r.a.Position(); got != 30*time.Second {
		t.Errorf("position after seekcur = %v, want 30s", got)
	}
	r.ok(t, "seekcur -40")
	if got := r.a.Position(); got != 0 {
		t.Errorf("position after seekcur -40 = %v, want 0", got)
	}
	if resp := r.do(t, "seek 1 10"); !strings.HasPrefix(resp, "ACK [2@0] {seek}") {
		t.Errorf("seek in another song = %q", resp)
	}
	r.ok(t, "seek 0 12.5")
	if got := r.a.Position(); got != 12500*time.Millisecond {
		t.Errorf("position after seek = %v, want 12.5s", got)
	}

	r.ok(t, "next")
	if got := field(r.ok(t, "currentsong"), "file"); got != "file:///two.flac" {
		t.Errorf("currentsong after next = %q", got)
	}
	if resp := r.do(t, "next"); !strings.HasPrefix(resp, "ACK [50@0] {next}") {
		t.Errorf("next at end of queue = %q", resp)
	}

	r.ok(t, "play 0")
	if got := field(r.ok(t, "status"), "song"); got != "0" {
		t.Errorf("song after play 0 = %q", got)
	}

	r.ok(t, "stop")
	status = r.ok(t, "status")
	if got := field(status, "state"); got != "stop" {
		t.Errorf("state after stop = %q", got)
	}
	if field(status, "elapsed") != "" {
		t.Error("stopped status reports elapsed")
	}
	if resp := r.do(t, "seekcur 5"); !strings.HasPrefix(resp, "ACK [50@0] {seekcur}") {
		t.Errorf("seekcur while stopped = %q", resp)
	}
}

func TestCrossfadeCommand(t *testing.T) {
	r := newRig(t)
	r.ok(t, "crossfade 6")
	if got := r.p.Crossfade(); got != 6*time.Second {
		t.Errorf("crossfade = %v, want 6s", got)
	}
	if got := field(r.ok(t, "status"), "xfade"); got != "6" {
		t.Errorf("xfade = %q, want 6", got)
	}
	if got := r.ok(t, "crossfade"); got != "xfade: 6\nOK\n" {
		t.Errorf("crossfade without argument = %q", got)
	}
	for _, bad := range []string{"crossfade x", "crossfade -1"} {
		if resp := r.do(t, bad); !strings.HasPrefix(resp, "ACK [2@0] {crossfade}") {
			t.Errorf("%s = %q, want ACK", bad, resp)
		}
	}
}

func TestTransportGoesThroughSurfaceHandlers(t *testing.T) {
	r := newRig(t)
	r.ok(t, `add "file:///one.flac"`)
	r.ok(t, `add "file:///two.flac"`)
	r.ok(t, "play")
	r.a.SetPosition(50 * time.Second)

	var (
		mu  sync.Mutex
		got []mediasession.ActionDetails
	)
	record := func(d mediasession.ActionDetails) {
		mu.Lock()
		got = append(got, d)
		mu.Unlock()
	}
	for _, a := range mediasession.Actions {
		r.s.SetActionHandler(a, record)
	}

	r.ok(t, "pause 1")
	r.ok(t, "next")
	r.ok(t, "seekcur +10")
	r.ok(t, "seek 0 5")

	want := []mediasession.ActionDetails{
		{Action: mediasession.ActionPause},
		{Action: mediasession.ActionNextTrack},
		{Action: mediasession.ActionSeekTo, SeekTime: 60},
		{Action: mediasession.ActionSeekTo, SeekTime: 5},
	}
	mu.Lock()
	actions := append([]mediasession.ActionDetails(nil), got...)
	mu.Unlock()
	if !reflect.DeepEqual(actions, want) {
		t.Errorf("actions = %+v, want %+v", actions, want)
	}
	if r.a.Paused() {
		t.Error("pause bypassed the bound handler")
	}

	// Unbinding falls back to the player
	r.s.SetActionHandler(mediasession.ActionPause, nil)
	r.ok(t, "pause 1")
	if !r.a.Paused() {
		t.Error("pause without a handler did not pause the deck")
	}
}

func TestSurfaceNotifiesPlayerSubsystem(t *testing.T) {
	r := newRig(t)
	idle := newIdleConnection([]string{"player"})
	r.s.registerIdle(idle)
	defer r.s.unregisterIdle(idle)

	r.s.SetPlaybackState(mediasession.PlaybackPlaying)
	select {
	case sub := <-idle.notify:
		if sub != "player" {
			t.Errorf("notified %q, want player", sub)
		}
	default:
		t.Fatal("state change did not notify")
	}

	r.s.SetPlaybackState(mediasession.PlaybackPlaying)
	r.s.SetPositionState(mediasession.PositionState{Position: time.Second, Rate: 1})
	select {
	case sub := <-idle.notify:
		t.Errorf("unchanged state notified %q", sub)
	default:
	}
}

func TestCommandList(t *testing.T) {
	r := newRig(t)

	out := r.s.runCommandList(&commandList{ok: true, lines: []string{"ping", `add "file:///a.flac"`}})
	if out != "list_OK\nlist_OK\nOK\n" {
		t.Errorf("ok list = %q", out)
	}

	out = r.s.runCommandList(&commandList{lines: []string{"ping", "bogus", "ping"}})
	if out != "ACK [5@1] {bogus} unknown command\n" {
		t.Errorf("failing list = %q", out)
	}
}

func TestTagTypes(t *testing.T) {
	r := newRig(t)
	r.ok(t, "tagtypes clear")
	r.ok(t, "tagtypes enable Artist title")
	if got := r.ok(t, "tagtypes"); got != "tagtype: Artist\ntagtype: Title\nOK\n" {
		t.Errorf("tagtypes = %q", got)
	}
	if resp := r.do(t, "tagtypes enable bogus"); !strings.HasPrefix(resp, "ACK") {
		t.Errorf("unknown tag = %q", resp)
	}

	r.ok(t, `add "file:///one.flac"`)
	r.ok(t, "tagtypes disable title")
	if info := r.ok(t, "playlistinfo"); strings.Contains(info, "Title:") {
		t.Errorf("disabled title still listed:\n%s", info)
	}
}

func TestUnsupportedModes(t *testing.T) {
	r := newRig(t)
	for _, mode := range []string{"single", "consume", "repeat", "random"} {
		r.ok(t, mode+" 0")
		if resp := r.do(t, mode+" 2"); !strings.HasPrefix(resp, "ACK [2@0] {"+mode+"}") {
			t.Errorf("%s 2 = %q", mode, resp)
		}
	}
}

func dial(t *testing.T, s *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	rd := bufio.NewReader(conn)
	if line, err := rd.ReadString('\n'); err != nil || line != greeting {
		t.Fatalf("greeting = %q, %v", line, err)
	}
	return conn, rd
}

func readResponse(t *testing.T, rd *bufio.Reader) string {
	t.Helper()
	var out strings.Builder
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v (so far %q)", err, out.String())
		}
		out.WriteString(line)
		if line == "OK\n" || strings.HasPrefix(line, "ACK ") {
			return out.String()
		}
	}
}

func TestConnection_IdleAndNoIdle(t *testing.T) {
	r := newRig(t)
	if err := r.s.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.s.Stop()

	conn, rd := dial(t, r.s)

	io.WriteString(conn, "idle playlist\n")
	waitIdle(t, r.s)
	r.p.AddURLs([]string{"file:///one.flac"})
	if got := readResponse(t, rd); got != "changed: playlist\nOK\n" {
		t.Errorf("idle = %q", got)
	}

	io.WriteString(conn, "idle\n")
	waitIdle(t, r.s)
	io.WriteString(conn, "noidle\n")
	if got := readResponse(t, rd); got != "OK\n" {
		t.Errorf("noidle = %q", got)
	}

	io.WriteString(conn, "command_list_ok_begin\nping\nstatus\ncommand_list_end\n")
	got := readResponse(t, rd)
	if !strings.HasPrefix(got, "list_OK\nvolume: 100\n") || !strings.HasSuffix(got, "list_OK\nOK\n") {
		t.Errorf("command list = %q", got)
	}
}

func TestConnection_StopReleasesIdle(t *testing.T) {
	r := newRig(t)
	if err := r.s.Start(); err != nil {
		t.Fatal(err)
	}
	conn, rd := dial(t, r.s)

	io.WriteString(conn, "idle\n")
	waitIdle(t, r.s)
	if err := r.s.Stop(); err != nil {
		t.Fatal(err)
	}
	if got := readResponse(t, rd); got != "OK\n" {
		t.Errorf("idle after stop = %q", got)
	}
}

func waitIdle(t *testing.T, s *Server) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.idleMu.RLock()
		n := len(s.idleConns)
		s.idleMu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("connection never entered idle")
}
