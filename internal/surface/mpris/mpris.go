// Package mpris exposes a media session surface on the D-Bus session bus
// using the MPRIS2 interfaces read by desktop lock screens, notification
// areas and media keys.
package mpris

import (
	"fmt"
	"math"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/famish99/deckd/internal/logging"
	"github.com/famish99/deckd/internal/mediasession"
)

const (
	objectPath   = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface    = "org.mpris.MediaPlayer2"
	playerIface  = "org.mpris.MediaPlayer2.Player"
	busPrefix    = "org.mpris.MediaPlayer2."
	noTrack      = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")
	trackPathFmt = "/org/deckd/track/%s"
)

var _ mediasession.Surface = (*Surface)(nil)

// Options configure the exported player
type Options struct {
	Name     string // Bus name suffix, e.g. "deckd"
	Identity string // Human readable player name
	Logger   *log.Logger
	// OpenURI handles OpenUri calls. Nil rejects them.
	OpenURI func(uri string) error
}

// Surface is an MPRIS2 media player object
type Surface struct {
	conn   *dbus.Conn
	props  *prop.Properties
	logger *log.Logger
	open   func(string) error

	mu       sync.Mutex
	handlers map[mediasession.Action]mediasession.Handler
	state    mediasession.PlaybackState
	position time.Duration
	trackID  dbus.ObjectPath
}

// New connects to the session bus and exports the player
func New(opts Options) (*Surface, error) {
	if opts.Name == "" {
		opts.Name = "deckd"
	}
	if opts.Identity == "" {
		opts.Identity = opts.Name
	}
	logger := logging.OrDefault(opts.Logger)

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	s := &Surface{
		conn:     conn,
		logger:   logger,
		open:     opts.OpenURI,
		handlers: make(map[mediasession.Action]mediasession.Handler),
		trackID:  noTrack,
	}
	if err := s.export(opts); err != nil {
		conn.Close()
		return nil, err
	}

	reply, err := conn.RequestName(busPrefix+opts.Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", busPrefix+opts.Name)
	}

	logger.Info("MPRIS player exported", "name", busPrefix+opts.Name)
	return s, nil
}

func (s *Surface) export(opts Options) error {
	root := &rootObject{}
	player := &playerObject{s: s}

	if err := s.conn.Export(root, objectPath, rootIface); err != nil {
		return fmt.Errorf("export %s: %w", rootIface, err)
	}
	if err := s.conn.ExportWithMap(player, playerMethods, objectPath, playerIface); err != nil {
		return fmt.Errorf("export %s: %w", playerIface, err)
	}

	props, err := prop.Export(s.conn, objectPath, propertyMap(opts.Identity))
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	s.props = props

	node := &introspect.Node{
		Name: string(objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       rootIface,
				Methods:    introspect.Methods(root),
				Properties: props.Introspection(rootIface),
			},
			{
				Name:       playerIface,
				Methods:    renameMethods(introspect.Methods(player), playerMethods),
				Properties: props.Introspection(playerIface),
				Signals: []introspect.Signal{{
					Name: "Seeked",
					Args: []introspect.Arg{{Name: "Position", Type: "x"}},
				}},
			},
		},
	}
	return s.conn.Export(introspect.NewIntrospectable(node), objectPath, "org.freedesktop.DBus.Introspectable")
}

// playerMethods maps Go method names to their D-Bus names where they differ.
// Seek(int64) would clash with the io.Seeker signature.
var playerMethods = map[string]string{"SeekRelative": "Seek"}

func renameMethods(methods []introspect.Method, names map[string]string) []introspect.Method {
	for i, m := range methods {
		if name, ok := names[m.Name]; ok {
			methods[i].Name = name
		}
	}
	return methods
}

func propertyMap(identity string) prop.Map {
	ro := func(v any) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: prop.EmitTrue}
	}
	return prop.Map{
		rootIface: {
			"CanQuit":             ro(false),
			"CanRaise":            ro(false),
			"HasTrackList":        ro(false),
			"Identity":            ro(identity),
			"SupportedUriSchemes": ro([]string{"file", "http", "https"}),
			"SupportedMimeTypes":  ro([]string{"audio/flac", "audio/mpeg", "audio/wav", "audio/ogg"}),
		},
		playerIface: {
			"PlaybackStatus": ro(playbackStatus(mediasession.PlaybackNone)),
			"Rate":           ro(1.0),
			"MinimumRate":    ro(1.0),
			"MaximumRate":    ro(1.0),
			"Volume":         ro(1.0),
			"Metadata":       ro(map[string]dbus.Variant{"mpris:trackid": dbus.MakeVariant(noTrack)}),
			"Position":       {Value: int64(0), Writable: false, Emit: prop.EmitFalse},
			"CanGoNext":      ro(true),
			"CanGoPrevious":  ro(true),
			"CanPlay":        ro(true),
			"CanPause":       ro(true),
			"CanSeek":        ro(true),
			"CanControl":     {Value: true, Writable: false, Emit: prop.EmitConst},
		},
	}
}

// Close releases the bus connection
func (s *Surface) Close() error {
	return s.conn.Close()
}

// mediasession.Surface

func (s *Surface) SetMetadata(md mediasession.Metadata) {
	s.mu.Lock()
	id := trackPath(md)
	s.trackID = id
	s.mu.Unlock()

	s.props.SetMust(playerIface, "Metadata", metadataMap(md, id, 0))
}

func (s *Surface) SetPlaybackState(st mediasession.PlaybackState) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()

	if changed {
		s.props.SetMust(playerIface, "PlaybackStatus", playbackStatus(st))
	}
}

func (s *Surface) SetPositionState(ps mediasession.PositionState) {
	s.mu.Lock()
	s.position = ps.Position
	s.mu.Unlock()

	s.props.SetMust(playerIface, "Position", micros(ps.Position))

	// Length is part of the metadata map; refresh it when it changes.
	if cur, ok := s.props.GetMust(playerIface, "Metadata").(map[string]dbus.Variant); ok {
		if v, ok := cur["mpris:length"]; !ok || v.Value() != micros(ps.Duration) {
			next := make(map[string]dbus.Variant, len(cur)+1)
			for k, v := range cur {
				next[k] = v
			}
			next["mpris:length"] = dbus.MakeVariant(micros(ps.Duration))
			s.props.SetMust(playerIface, "Metadata", next)
		}
	}
}

func (s *Surface) SetActionHandler(a mediasession.Action, h mediasession.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		delete(s.handlers, a)
		return
	}
	s.handlers[a] = h
}

func (s *Surface) dispatch(a mediasession.Action, seek float64) *dbus.Error {
	s.mu.Lock()
	h := s.handlers[a]
	s.mu.Unlock()
	if h == nil {
		return dbus.MakeFailedError(fmt.Errorf("%s not available", a))
	}
	h(mediasession.ActionDetails{Action: a, SeekTime: seek})
	return nil
}

func (s *Surface) seeked(pos time.Duration) {
	if err := s.conn.Emit(objectPath, playerIface+".Seeked", micros(pos)); err != nil {
		s.logger.Debug("emit Seeked failed", "err", err)
	}
}

// D-Bus objects

type rootObject struct{}

func (rootObject) Raise() *dbus.Error { return nil }
func (rootObject) Quit() *dbus.Error  { return nil }

type playerObject struct {
	s *Surface
}

func (p *playerObject) Play() *dbus.Error     { return p.s.dispatch(mediasession.ActionPlay, 0) }
func (p *playerObject) Pause() *dbus.Error    { return p.s.dispatch(mediasession.ActionPause, 0) }
func (p *playerObject) Stop() *dbus.Error     { return p.s.dispatch(mediasession.ActionPause, 0) }
func (p *playerObject) Next() *dbus.Error     { return p.s.dispatch(mediasession.ActionNextTrack, 0) }
func (p *playerObject) Previous() *dbus.Error { return p.s.dispatch(mediasession.ActionPreviousTrack, 0) }

func (p *playerObject) PlayPause() *dbus.Error {
	p.s.mu.Lock()
	playing := p.s.state == mediasession.PlaybackPlaying
	p.s.mu.Unlock()
	if playing {
		return p.Pause()
	}
	return p.Play()
}

// SeekRelative moves relative to the current position, in microseconds.
// Exported on the bus as Seek.
func (p *playerObject) SeekRelative(offset int64) *dbus.Error {
	p.s.mu.Lock()
	target := p.s.position + time.Duration(offset)*time.Microsecond
	p.s.mu.Unlock()
	if target < 0 {
		target = 0
	}
	if err := p.s.dispatch(mediasession.ActionSeekTo, target.Seconds()); err != nil {
		return err
	}
	p.s.seeked(target)
	return nil
}

// SetPosition seeks to an absolute position if trackID is still current
func (p *playerObject) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	p.s.mu.Lock()
	current := p.s.trackID
	p.s.mu.Unlock()
	if trackID != current || position < 0 {
		return nil
	}
	pos := time.Duration(position) * time.Microsecond
	if err := p.s.dispatch(mediasession.ActionSeekTo, pos.Seconds()); err != nil {
		return err
	}
	p.s.seeked(pos)
	return nil
}

func (p *playerObject) OpenUri(uri string) *dbus.Error {
	if p.s.open == nil {
		return dbus.MakeFailedError(fmt.Errorf("OpenUri not supported"))
	}
	if err := p.s.open(uri); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Conversions

var trackIDUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

func trackPath(md mediasession.Metadata) dbus.ObjectPath {
	key := md.Title + "_" + md.Artist + "_" + md.Album
	key = trackIDUnsafe.ReplaceAllString(key, "_")
	if key == "__" {
		return noTrack
	}
	return dbus.ObjectPath(fmt.Sprintf(trackPathFmt, key))
}

func metadataMap(md mediasession.Metadata, id dbus.ObjectPath, length time.Duration) map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(id),
	}
	if md.Title != "" {
		m["xesam:title"] = dbus.MakeVariant(md.Title)
	}
	if md.Artist != "" {
		m["xesam:artist"] = dbus.MakeVariant([]string{md.Artist})
	}
	if md.Album != "" {
		m["xesam:album"] = dbus.MakeVariant(md.Album)
	}
	if md.Artwork != "" {
		m["mpris:artUrl"] = dbus.MakeVariant(md.Artwork)
	}
	if length > 0 {
		m["mpris:length"] = dbus.MakeVariant(micros(length))
	}
	return m
}

func playbackStatus(st mediasession.PlaybackState) string {
	switch st {
	case mediasession.PlaybackPlaying:
		return "Playing"
	case mediasession.PlaybackPaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func micros(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(math.Round(float64(d) / float64(time.Microsecond)))
}
