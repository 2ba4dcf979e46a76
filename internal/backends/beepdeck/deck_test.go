package beepdeck

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/cache"
)

const testRate = beep.SampleRate(1000)

// writeTone writes n frames of a constant level to a 16-bit stereo WAV
func writeTone(t *testing.T, n int, level float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	left := n
	tone := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left == 0 {
			return 0, false
		}
		k := min(left, len(samples))
		for i := range samples[:k] {
			samples[i] = [2]float64{level, level}
		}
		left -= k
		return k, true
	})

	format := beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, tone, format); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixedSource(path string, err error) Source {
	return Source{Resolve: func(context.Context, string) (string, error) { return path, err }}
}

// loadDeck creates a deck and waits for the given event after Load
func loadDeck(t *testing.T, files Source, src string, want backends.EventKind) (*Deck, backends.Event) {
	t.Helper()
	d := newDeck("A", testRate, files, log.New(io.Discard))
	t.Cleanup(func() { d.Close() })

	got := make(chan backends.Event, 1)
	sub := d.Subscribe(func(ev backends.Event) { got <- ev }, want)
	defer sub.Close()

	d.SetSource(src)
	d.Load()

	select {
	case ev := <-got:
		return d, ev
	case <-time.After(5 * time.Second):
		t.Fatalf("no %v event", want)
		return nil, backends.Event{}
	}
}

func pull(d *Deck, n int) [][2]float64 {
	buf := make([][2]float64, n)
	for i := range buf {
		buf[i] = [2]float64{9, 9}
	}
	d.Stream(buf)
	return buf
}

func near(a, b float64) bool { return math.Abs(a-b) < 0.001 }

func TestDeck_LoadAndPlay(t *testing.T) {
	path := writeTone(t, 1000, 0.5)
	d, ev := loadDeck(t, fixedSource(path, nil), "file:///tone.flac", backends.EventCanPlayThrough)

	if ev.Source != "file:///tone.flac" {
		t.Errorf("event source = %q", ev.Source)
	}
	if !d.Buffered() {
		t.Error("not buffered after canplaythrough")
	}
	if dur, ok := d.Duration(); !ok || dur != time.Second {
		t.Errorf("Duration = %v, %v; want 1s", dur, ok)
	}

	// Paused decks output silence without advancing
	if buf := pull(d, 100); buf[0][0] != 0 || buf[99][1] != 0 {
		t.Errorf("paused deck produced %v", buf[0])
	}
	if d.Position() != 0 {
		t.Errorf("paused deck advanced to %v", d.Position())
	}

	if err := d.Play(); err != nil {
		t.Fatal(err)
	}
	buf := pull(d, 100)
	if !near(buf[0][0], 0.5) || !near(buf[99][1], 0.5) {
		t.Errorf("playing deck produced %v, want 0.5", buf[0])
	}
	if d.Position() != 100*time.Millisecond {
		t.Errorf("Position = %v, want 100ms", d.Position())
	}
}

func TestDeck_Volume(t *testing.T) {
	path := writeTone(t, 1000, 0.5)
	d, _ := loadDeck(t, fixedSource(path, nil), "a", backends.EventCanPlayThrough)
	d.Play()

	d.SetVolume(0.5)
	if buf := pull(d, 10); !near(buf[0][0], 0.25) {
		t.Errorf("half gain produced %v, want 0.25", buf[0][0])
	}

	d.SetVolume(0)
	if buf := pull(d, 10); buf[0][0] != 0 {
		t.Errorf("zero gain produced %v", buf[0][0])
	}

	d.SetVolume(3)
	if d.Volume() != 1 {
		t.Errorf("Volume = %v, want clamped to 1", d.Volume())
	}
}

func TestDeck_EndedAndReplay(t *testing.T) {
	path := writeTone(t, 100, 0.5)
	d, _ := loadDeck(t, fixedSource(path, nil), "a", backends.EventCanPlayThrough)

	ended := make(chan struct{}, 1)
	d.Subscribe(func(backends.Event) { ended <- struct{}{} }, backends.EventEnded)

	d.Play()
	buf := pull(d, 150)
	if !near(buf[99][0], 0.5) || buf[100][0] != 0 || buf[149][1] != 0 {
		t.Errorf("tail not zero-filled: %v %v", buf[99], buf[100])
	}

	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("no ended event")
	}
	if !d.Ended() || !d.Paused() {
		t.Errorf("ended=%v paused=%v after exhaustion", d.Ended(), d.Paused())
	}

	// Play after the end starts over
	if err := d.Play(); err != nil {
		t.Fatal(err)
	}
	if d.Ended() || d.Position() != 0 {
		t.Errorf("replay did not rewind: ended=%v pos=%v", d.Ended(), d.Position())
	}
}

func TestDeck_SetPosition(t *testing.T) {
	path := writeTone(t, 1000, 0.5)
	d, _ := loadDeck(t, fixedSource(path, nil), "a", backends.EventCanPlayThrough)

	if err := d.SetPosition(500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if d.Position() != 500*time.Millisecond {
		t.Errorf("Position = %v, want 500ms", d.Position())
	}
	if err := d.SetPosition(time.Hour); err != nil {
		t.Fatal(err)
	}
	if d.Position() != time.Second {
		t.Errorf("Position = %v, want clamped to 1s", d.Position())
	}
}

func TestDeck_SilenceSource(t *testing.T) {
	d, _ := loadDeck(t, fixedSource("", errors.New("unused")), backends.SilenceSource, backends.EventCanPlayThrough)

	if _, ok := d.Duration(); ok {
		t.Error("silence should have unknown duration")
	}
	if err := d.Play(); err != nil {
		t.Fatal(err)
	}
	if buf := pull(d, 10); buf[0][0] != 0 {
		t.Errorf("silence produced %v", buf[0])
	}
}

func TestDeck_LoadError(t *testing.T) {
	boom := errors.New("decode failed")
	_, ev := loadDeck(t, fixedSource("", boom), "a", backends.EventError)
	if !errors.Is(ev.Err, boom) {
		t.Errorf("event err = %v, want %v", ev.Err, boom)
	}
}

func TestDeck_CorruptCacheEntryIsDecodedAgain(t *testing.T) {
	dc, err := cache.NewDiskCache(t.TempDir(), 1<<30, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	const src = "file:///music/track.flac"
	if err := os.WriteFile(dc.PathForKey(src), []byte("not a wav file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := dc.RegisterFile(src); err != nil {
		t.Fatal(err)
	}

	tone := writeTone(t, 500, 0.25)
	decodes := 0
	decode := func(_ context.Context, _, dest string) error {
		decodes++
		data, err := os.ReadFile(tone)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, data, 0o644)
	}
	files := Source{
		Resolve: func(ctx context.Context, url string) (string, error) {
			return dc.EnsureDecoded(ctx, url, decode)
		},
		Invalidate: dc.Invalidate,
	}

	_, ev := loadDeck(t, files, src, backends.EventError)
	if ev.Err == nil {
		t.Fatal("corrupt entry loaded without error")
	}
	if dc.Contains(src) {
		t.Fatal("corrupt entry still cached after failed load")
	}
	if decodes != 0 {
		t.Fatalf("decoded %d times before invalidation", decodes)
	}

	d, _ := loadDeck(t, files, src, backends.EventCanPlayThrough)
	if decodes != 1 {
		t.Errorf("decodes = %d, want 1", decodes)
	}
	if dur, ok := d.Duration(); !ok || dur != 500*time.Millisecond {
		t.Errorf("Duration = %v, %v; want 500ms", dur, ok)
	}
}

func TestDeck_PlayWithoutSource(t *testing.T) {
	d := newDeck("B", testRate, fixedSource("", nil), log.New(io.Discard))
	if err := d.Play(); !errors.Is(err, backends.ErrNoSource) {
		t.Errorf("Play = %v, want ErrNoSource", err)
	}
}

func TestDeck_CloseLeavesMixer(t *testing.T) {
	d := newDeck("B", testRate, fixedSource("", nil), log.New(io.Discard))
	d.Close()
	if n, ok := d.Stream(make([][2]float64, 10)); n != 0 || ok {
		t.Errorf("Stream after Close = %d, %v", n, ok)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
