package clock

import (
	"testing"
	"time"
)

func TestFake(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("fires in due order", func(t *testing.T) {
		c := NewFake(start)
		var order []string
		c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
		c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
		c.AfterFunc(200*time.Millisecond, func() { order = append(order, "c") })

		c.Advance(150 * time.Millisecond)
		if len(order) != 1 || order[0] != "a" {
			t.Fatalf("after 150ms got %v, want [a]", order)
		}

		c.Advance(50 * time.Millisecond)
		if len(order) != 3 || order[1] != "b" || order[2] != "c" {
			t.Fatalf("after 200ms got %v, want [a b c]", order)
		}
	})

	t.Run("now is the due time inside callbacks", func(t *testing.T) {
		c := NewFake(start)
		var seen time.Time
		c.AfterFunc(40*time.Millisecond, func() { seen = c.Now() })
		c.Advance(time.Second)

		if got := seen.Sub(start); got != 40*time.Millisecond {
			t.Errorf("callback saw %v elapsed, want 40ms", got)
		}
		if got := c.Now().Sub(start); got != time.Second {
			t.Errorf("clock at %v after advance, want 1s", got)
		}
	})

	t.Run("rearmed timers fire within one advance", func(t *testing.T) {
		c := NewFake(start)
		ticks := 0
		var tick func()
		tick = func() {
			ticks++
			c.AfterFunc(50*time.Millisecond, tick)
		}
		c.AfterFunc(50*time.Millisecond, tick)

		c.Advance(time.Second)
		if ticks != 20 {
			t.Errorf("got %d ticks, want 20", ticks)
		}
	})

	t.Run("stop", func(t *testing.T) {
		c := NewFake(start)
		fired := false
		timer := c.AfterFunc(10*time.Millisecond, func() { fired = true })

		if !timer.Stop() {
			t.Error("first Stop should report true")
		}
		if timer.Stop() {
			t.Error("second Stop should report false")
		}
		c.Advance(time.Second)
		if fired {
			t.Error("stopped timer fired")
		}
		if c.Pending() != 0 {
			t.Errorf("pending = %d, want 0", c.Pending())
		}
	})
}
