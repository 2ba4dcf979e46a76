package backends

import (
	"sync"
	"time"
)

var _ Handle = (*Mock)(nil)

// Mock is a scriptable Handle for tests. Transport calls emit the same
// events a real handle would, synchronously on the calling goroutine.
type Mock struct {
	mu sync.Mutex

	name     string
	source   string
	paused   bool
	ended    bool
	buffered bool
	position time.Duration
	duration time.Duration
	hasDur   bool
	volume   float64

	// Behaviour knobs
	playErr   error
	autoReady bool

	// Call records
	loads      []string
	playCalls  int
	pauseCalls int
	closed     bool

	events *Dispatcher
}

// NewMock creates a paused mock handle at full volume with no source.
func NewMock(name string) *Mock {
	return &Mock{
		name:   name,
		paused: true,
		volume: 1,
		events: NewDispatcher(),
	}
}

// Name returns the label the mock was created with.
func (m *Mock) Name() string { return m.name }

func (m *Mock) SetSource(url string) {
	m.mu.Lock()
	m.source = url
	m.mu.Unlock()
}

func (m *Mock) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Load resets playback state for the current source. With SetAutoReady the
// mock immediately reports metadata and readiness.
func (m *Mock) Load() {
	m.mu.Lock()
	m.loads = append(m.loads, m.source)
	m.ended = false
	m.buffered = false
	m.position = 0
	m.paused = true
	auto := m.autoReady
	m.mu.Unlock()

	if auto {
		m.MakeReady()
	}
}

func (m *Mock) Play() error {
	m.mu.Lock()
	if m.playErr != nil {
		err := m.playErr
		m.playCalls++
		m.mu.Unlock()
		return err
	}
	if m.source == "" {
		m.playCalls++
		m.mu.Unlock()
		return ErrNoSource
	}
	m.playCalls++
	if m.ended {
		m.ended = false
		m.position = 0
	}
	wasPaused := m.paused
	m.paused = false
	src := m.source
	m.mu.Unlock()

	if wasPaused {
		m.events.Emit(Event{Kind: EventPlaying, Source: src})
	}
	return nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	m.pauseCalls++
	wasPaused := m.paused
	m.paused = true
	src := m.source
	m.mu.Unlock()

	if !wasPaused {
		m.events.Emit(Event{Kind: EventPause, Source: src})
	}
}

func (m *Mock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Mock) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

func (m *Mock) Buffered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffered
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) SetPosition(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.position = d
	return nil
}

func (m *Mock) Duration() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration, m.hasDur
}

func (m *Mock) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Mock) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
}

func (m *Mock) Subscribe(fn func(Event), kinds ...EventKind) Subscription {
	return m.events.Subscribe(fn, kinds...)
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Scripting helpers

// SetPlayErr makes subsequent Play calls fail with err (nil to succeed).
func (m *Mock) SetPlayErr(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

// SetAutoReady makes Load report readiness immediately.
func (m *Mock) SetAutoReady(auto bool) {
	m.mu.Lock()
	m.autoReady = auto
	m.mu.Unlock()
}

// SetBuffered sets the buffered readiness without emitting an event.
func (m *Mock) SetBuffered(b bool) {
	m.mu.Lock()
	m.buffered = b
	m.mu.Unlock()
}

// SetDuration sets the reported duration. ok=false reports it as unknown.
func (m *Mock) SetDuration(d time.Duration, ok bool) {
	m.mu.Lock()
	m.duration = d
	m.hasDur = ok
	m.mu.Unlock()
}

// MakeReady marks the source buffered and emits LoadedMetadata and CanPlayThrough.
func (m *Mock) MakeReady() {
	m.mu.Lock()
	m.buffered = true
	src := m.source
	m.mu.Unlock()

	m.events.Emit(Event{Kind: EventLoadedMetadata, Source: src})
	m.events.Emit(Event{Kind: EventCanPlayThrough, Source: src})
}

// Finish simulates reaching the natural end of the source.
func (m *Mock) Finish() {
	m.mu.Lock()
	m.ended = true
	m.paused = true
	if m.hasDur {
		m.position = m.duration
	}
	src := m.source
	m.mu.Unlock()

	m.events.Emit(Event{Kind: EventEnded, Source: src})
}

// Stall simulates the output stopping mid-stream without a user pause.
func (m *Mock) Stall() {
	m.mu.Lock()
	m.paused = true
	src := m.source
	m.mu.Unlock()

	m.events.Emit(Event{Kind: EventStalled, Source: src})
}

// Fail emits an error event.
func (m *Mock) Fail(err error) {
	m.events.Emit(Event{Kind: EventError, Source: m.Source(), Err: err})
}

// Emit sends an arbitrary event to subscribers.
func (m *Mock) Emit(kind EventKind) {
	m.events.Emit(Event{Kind: kind, Source: m.Source()})
}

// Loads returns every source Load was called with, in order.
func (m *Mock) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.loads))
	copy(out, m.loads)
	return out
}

// PlayCalls returns how many times Play was called.
func (m *Mock) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

// PauseCalls returns how many times Pause was called.
func (m *Mock) PauseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseCalls
}

// Subscribers returns the number of live event subscriptions.
func (m *Mock) Subscribers() int {
	return m.events.Len()
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
