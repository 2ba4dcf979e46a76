package eventloop

import (
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLoop_PostRunsInline(t *testing.T) {
	l := New(log.New(io.Discard))
	ran := false
	l.Post(func() { ran = true })
	if !ran {
		t.Fatal("task did not run before Post returned")
	}
}

func TestLoop_ReentrantPostIsQueued(t *testing.T) {
	l := New(log.New(io.Discard))
	var order []string

	l.Post(func() {
		order = append(order, "outer-start")
		l.Post(func() { order = append(order, "inner") })
		order = append(order, "outer-end")
	})

	want := []string{"outer-start", "outer-end", "inner"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestLoop_SurvivesPanic(t *testing.T) {
	l := New(log.New(io.Discard))
	l.Post(func() { panic("boom") })

	ran := false
	l.Post(func() { ran = true })
	if !ran {
		t.Fatal("loop stopped running tasks after a panic")
	}
}

func TestLoop_TasksNeverOverlap(t *testing.T) {
	l := New(log.New(io.Discard))
	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		count   int
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {
				active++
				if active > maxSeen {
					maxSeen = active
				}
				count++
				active--
			})
		}()
	}
	wg.Wait()
	// The last drainer may still be finishing; a final post drains the rest.
	done := make(chan struct{})
	l.Post(func() { close(done) })
	<-done

	if maxSeen != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxSeen)
	}
	if count != 50 {
		t.Errorf("ran %d tasks, want 50", count)
	}
}
