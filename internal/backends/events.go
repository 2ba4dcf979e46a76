package backends

import (
	"sort"
	"sync"
)

// EventKind identifies a handle notification.
type EventKind int

const (
	EventLoadedMetadata EventKind = iota
	EventCanPlayThrough
	EventPlaying
	EventPause
	EventEnded
	EventError
	EventStalled
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventCanPlayThrough:
		return "canplaythrough"
	case EventPlaying:
		return "playing"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Event is a notification emitted by a handle.
type Event struct {
	Kind   EventKind
	Source string // Source the handle had when the event was emitted
	Err    error  // Set for EventError
}

// Subscription is a registered event handler. Close unregisters it and is
// safe to call more than once.
type Subscription interface {
	Close()
}

// Dispatcher fans handle events out to subscribers. Handlers run on the
// emitting goroutine, outside the dispatcher lock.
type Dispatcher struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

type subscription struct {
	d     *Dispatcher
	id    int
	kinds map[EventKind]bool // empty = all kinds
	fn    func(Event)
	once  sync.Once
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[int]*subscription)}
}

// Subscribe registers fn for the given kinds, or for every kind if none are given.
func (d *Dispatcher) Subscribe(fn func(Event), kinds ...EventKind) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	s := &subscription{d: d, id: d.next, fn: fn, kinds: make(map[EventKind]bool, len(kinds))}
	for _, k := range kinds {
		s.kinds[k] = true
	}
	d.subs[s.id] = s
	return s
}

// Emit delivers ev to every matching subscriber in subscription order.
func (d *Dispatcher) Emit(ev Event) {
	d.mu.Lock()
	targets := make([]*subscription, 0, len(d.subs))
	for _, s := range d.subs {
		if len(s.kinds) == 0 || s.kinds[ev.Kind] {
			targets = append(targets, s)
		}
	}
	d.mu.Unlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	for _, s := range targets {
		s.fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.d.mu.Lock()
		delete(s.d.subs, s.id)
		s.d.mu.Unlock()
	})
}

// Subscriptions is a set of subscriptions released together when the owner
// leaves the state that needed them.
type Subscriptions []Subscription

// Close releases every subscription in the set and empties it.
func (ss *Subscriptions) Close() {
	for _, s := range *ss {
		s.Close()
	}
	*ss = nil
}
