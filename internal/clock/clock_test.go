package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	actual := RealClock{}.Now()
	after := time.Now()

	if actual.Before(before) || actual.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", actual, before, after)
	}
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("frozen by default", func(t *testing.T) {
		c := NewFakeClock(start)
		if !c.Now().Equal(start) || !c.Now().Equal(start) {
			t.Error("FakeClock without a tick should not move")
		}
	})

	t.Run("set and advance", func(t *testing.T) {
		c := NewFakeClock(start)
		c.Advance(2 * time.Hour)
		if got := c.Now(); !got.Equal(start.Add(2 * time.Hour)) {
			t.Errorf("after Advance, Now() = %v", got)
		}

		past := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		c.Set(past)
		if got := c.Now(); !got.Equal(past) {
			t.Errorf("after Set, Now() = %v, want %v", got, past)
		}
	})

	t.Run("tick advances on every read", func(t *testing.T) {
		c := NewFakeClock(start)
		c.Tick(500 * time.Millisecond)

		first := c.Now()
		second := c.Now()
		if got := second.Sub(first); got != 500*time.Millisecond {
			t.Errorf("tick step = %v, want 500ms", got)
		}
	})
}

func TestSince(t *testing.T) {
	c := NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	start := c.Now()
	c.Advance(3 * time.Second)

	if got := Since(c, start); got != 3*time.Second {
		t.Errorf("Since() = %v, want 3s", got)
	}
}
