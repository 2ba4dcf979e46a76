package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestCache(t *testing.T, maxSize int64) *DiskCache {
	t.Helper()
	c, err := NewDiskCache(t.TempDir(), maxSize, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// writeDecoder copies the source bytes prefixed with "wav:" to dest
func writeDecoder(calls *atomic.Int32) DecodeFunc {
	return func(_ context.Context, source, dest string) error {
		calls.Add(1)
		data, err := os.ReadFile(source)
		if err != nil {
			return err
		}
		return os.WriteFile(dest, append([]byte("wav:"), data...), 0644)
	}
}

func writeSource(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnsureDecoded_LocalFileDecodesOnce(t *testing.T) {
	c := newTestCache(t, 1<<20)
	src := writeSource(t, "a.flac", "audio")
	var calls atomic.Int32

	path, err := c.EnsureDecoded(context.Background(), "file://"+src, writeDecoder(&calls))
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "wav:audio" {
		t.Errorf("cached data = %q", data)
	}

	again, err := c.EnsureDecoded(context.Background(), "file://"+src, writeDecoder(&calls))
	if err != nil {
		t.Fatal(err)
	}
	if again != path || calls.Load() != 1 {
		t.Errorf("second call path=%q calls=%d, want cached hit", again, calls.Load())
	}
	if c.Size() != int64(len("wav:audio")) || c.Len() != 1 {
		t.Errorf("size=%d len=%d", c.Size(), c.Len())
	}
}

func TestEnsureDecoded_ConcurrentCallersShareDecode(t *testing.T) {
	c := newTestCache(t, 1<<20)
	src := writeSource(t, "a.flac", "audio")
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.EnsureDecoded(context.Background(), src, writeDecoder(&calls)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("decode calls = %d, want 1", calls.Load())
	}
}

func TestEnsureDecoded_FailureLeavesNoEntry(t *testing.T) {
	c := newTestCache(t, 1<<20)
	boom := errors.New("boom")
	fail := func(_ context.Context, _, dest string) error {
		os.WriteFile(dest, []byte("partial"), 0644)
		return boom
	}

	if _, err := c.EnsureDecoded(context.Background(), "/music/a.flac", fail); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Contains("/music/a.flac") {
		t.Error("failed decode registered an entry")
	}
	if _, err := os.Stat(c.PathForKey("/music/a.flac") + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestEnsureDecoded_RemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/song.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("remote"))
	}))
	defer srv.Close()

	c := newTestCache(t, 1<<20)
	var calls atomic.Int32

	path, err := c.EnsureDecoded(context.Background(), srv.URL+"/song.mp3", writeDecoder(&calls))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "wav:remote" {
		t.Errorf("cached data = %q", data)
	}

	if _, err := c.EnsureDecoded(context.Background(), srv.URL+"/missing.mp3", writeDecoder(&calls)); err == nil {
		t.Error("expected error for 404")
	}
}

func TestRegisterFile_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, 10)
	put := func(key string) {
		t.Helper()
		if err := os.WriteFile(c.PathForKey(key), []byte("12345"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := c.RegisterFile(key); err != nil {
			t.Fatal(err)
		}
	}

	put("a")
	put("b")
	c.Contains("a") // a becomes most recent
	put("c")

	if c.Contains("b") {
		t.Error("b should have been evicted")
	}
	if !c.Contains("a") || !c.Contains("c") {
		t.Error("a and c should remain")
	}
	if _, err := os.Stat(c.PathForKey("b")); !os.IsNotExist(err) {
		t.Error("evicted file still on disk")
	}
	if c.Size() != 10 {
		t.Errorf("size = %d, want 10", c.Size())
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := newTestCache(t, 1<<20)
	src := writeSource(t, "a.flac", "audio")
	var calls atomic.Int32

	if _, err := c.EnsureDecoded(context.Background(), src, writeDecoder(&calls)); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(src); err != nil {
		t.Fatal(err)
	}
	if c.Contains(src) || c.Size() != 0 {
		t.Error("entry survived Invalidate")
	}
	if err := c.Invalidate(src); err != nil {
		t.Errorf("second Invalidate = %v", err)
	}

	if _, err := c.EnsureDecoded(context.Background(), src, writeDecoder(&calls)); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("decode calls = %d, want 2", calls.Load())
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Error("entries survived Clear")
	}
	if _, err := c.EnsureDecoded(context.Background(), src, writeDecoder(&calls)); err != nil {
		t.Fatalf("decode after Clear: %v", err)
	}
}

func TestNewDiskCache_ScansExistingEntries(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "abc"), []byte("1234"), 0644)
	os.WriteFile(filepath.Join(dir, "def.tmp"), []byte("partial"), 0644)

	c, err := NewDiskCache(dir, 1<<20, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 || c.Size() != 4 {
		t.Errorf("len=%d size=%d, want 1 entry of 4 bytes", c.Len(), c.Size())
	}
	if _, err := os.Stat(filepath.Join(dir, "def.tmp")); !os.IsNotExist(err) {
		t.Error("stale temp file not removed")
	}
}
