package engine

import (
	"sort"
	"sync"

	"github.com/famish99/deckd/internal/backends"
	"github.com/famish99/deckd/internal/playlist"
)

// Subscription unregisters a watcher. Close is idempotent.
type Subscription = backends.Subscription

// watchers is a set of change callbacks keyed by registration order
type watchers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

type watcher[T any] struct {
	w    *watchers[T]
	id   int
	once sync.Once
}

func (w *watchers[T]) add(fn func(T)) Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(T))
	}
	w.next++
	w.fns[w.next] = fn
	return &watcher[T]{w: w, id: w.next}
}

func (w *watchers[T]) notify(v T) {
	w.mu.Lock()
	ids := make([]int, 0, len(w.fns))
	for id := range w.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, w.fns[id])
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (s *watcher[T]) Close() {
	s.once.Do(func() {
		s.w.mu.Lock()
		delete(s.w.fns, s.id)
		s.w.mu.Unlock()
	})
}

// Flag is the engine-wide "is playing" boolean. It has a single writer (the
// engine) and any number of watchers that are told about every change.
type Flag struct {
	mu    sync.Mutex
	value bool
	watch watchers[bool]
}

// Get returns the current value
func (f *Flag) Get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set stores v and notifies watchers if it changed. Returns whether it changed.
func (f *Flag) Set(v bool) bool {
	f.mu.Lock()
	changed := f.value != v
	f.value = v
	f.mu.Unlock()

	if changed {
		f.watch.notify(v)
	}
	return changed
}

// Watch registers fn for value changes
func (f *Flag) Watch(fn func(bool)) Subscription {
	return f.watch.add(fn)
}

// nowPlaying holds the song on the active deck
type nowPlaying struct {
	mu    sync.Mutex
	song  playlist.Song
	watch watchers[playlist.Song]
}

func (n *nowPlaying) get() playlist.Song {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.song
}

func (n *nowPlaying) set(s playlist.Song) {
	n.mu.Lock()
	n.song = s
	n.mu.Unlock()
	n.watch.notify(s)
}
