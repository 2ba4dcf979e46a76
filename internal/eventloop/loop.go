// Package eventloop serializes callbacks from timers, deck notifications and
// API calls onto a single logical thread of execution.
package eventloop

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/famish99/deckd/internal/logging"
)

// Loop is a cooperative serial executor. Tasks never run concurrently with
// each other, and a task posted from inside a running task is queued behind
// it instead of being run nested.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	logger  *log.Logger
}

// New creates a loop. A nil logger uses log.Default().
func New(logger *log.Logger) *Loop {
	logger = logging.OrDefault(logger)
	return &Loop{logger: logger}
}

// Post queues fn. If no goroutine is currently draining the loop, the caller
// drains it, so fn and everything it posts have run by the time Post returns.
// Otherwise Post returns immediately and the active drainer runs fn.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true

	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.run(next)

		l.mu.Lock()
	}
	l.running = false
	l.mu.Unlock()
}

// run executes a task, keeping the loop alive if it panics.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	fn()
}
