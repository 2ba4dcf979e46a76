package mpris

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5/introspect"

	"github.com/famish99/deckd/internal/mediasession"
)

func TestMetadataMap(t *testing.T) {
	md := mediasession.Metadata{Title: "Song", Artist: "Band", Album: "LP", Artwork: "https://img/cover.jpg"}
	id := trackPath(md)
	m := metadataMap(md, id, 3*time.Minute)

	if got := m["mpris:trackid"].Value(); got != id {
		t.Errorf("trackid = %v, want %v", got, id)
	}
	if got := m["xesam:title"].Value(); got != "Song" {
		t.Errorf("title = %v", got)
	}
	artists, ok := m["xesam:artist"].Value().([]string)
	if !ok || len(artists) != 1 || artists[0] != "Band" {
		t.Errorf("artist = %v", m["xesam:artist"].Value())
	}
	if got := m["mpris:length"].Value(); got != int64(180_000_000) {
		t.Errorf("length = %v, want 180000000", got)
	}
	if got := m["mpris:artUrl"].Value(); got != "https://img/cover.jpg" {
		t.Errorf("artUrl = %v", got)
	}
}

func TestMetadataMap_OmitsEmptyFields(t *testing.T) {
	m := metadataMap(mediasession.Metadata{Title: "Only"}, noTrack, 0)
	for _, key := range []string{"xesam:artist", "xesam:album", "mpris:artUrl", "mpris:length"} {
		if _, ok := m[key]; ok {
			t.Errorf("unexpected key %s", key)
		}
	}
}

func TestTrackPath(t *testing.T) {
	if got := trackPath(mediasession.Metadata{}); got != noTrack {
		t.Errorf("empty metadata path = %v, want NoTrack", got)
	}
	p := trackPath(mediasession.Metadata{Title: "Don't Stop", Artist: "A/B"})
	if !p.IsValid() {
		t.Errorf("track path %q is not a valid object path", p)
	}
}

func TestPlaybackStatus(t *testing.T) {
	tests := []struct {
		state mediasession.PlaybackState
		want  string
	}{
		{mediasession.PlaybackPlaying, "Playing"},
		{mediasession.PlaybackPaused, "Paused"},
		{mediasession.PlaybackNone, "Stopped"},
	}
	for _, tt := range tests {
		if got := playbackStatus(tt.state); got != tt.want {
			t.Errorf("playbackStatus(%v) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestMicros(t *testing.T) {
	if got := micros(1500 * time.Millisecond); got != 1_500_000 {
		t.Errorf("micros(1.5s) = %d", got)
	}
	if got := micros(-time.Second); got != 0 {
		t.Errorf("micros(-1s) = %d, want 0", got)
	}
}

func TestPlayerMethods_SeekName(t *testing.T) {
	methods := renameMethods(introspect.Methods(&playerObject{}), playerMethods)
	names := make(map[string]introspect.Method, len(methods))
	for _, m := range methods {
		names[m.Name] = m
	}
	if _, ok := names["SeekRelative"]; ok {
		t.Error("Go method name leaked into introspection")
	}
	seek, ok := names["Seek"]
	if !ok {
		t.Fatal("Seek missing from introspection")
	}
	if len(seek.Args) != 1 || seek.Args[0].Type != "x" || seek.Args[0].Direction != "in" {
		t.Errorf("Seek args = %+v, want one int64 in", seek.Args)
	}
	for _, name := range []string{"Play", "Pause", "PlayPause", "Next", "Previous", "SetPosition"} {
		if _, ok := names[name]; !ok {
			t.Errorf("%s missing from introspection", name)
		}
	}
}
