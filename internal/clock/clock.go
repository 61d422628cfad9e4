// Package clock abstracts wall time so pull and push durations can be
// asserted in tests.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed on c since start.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// FakeClock is a manually driven Clock for tests.
type FakeClock struct {
	current time.Time
	step    time.Duration
}

// NewFakeClock returns a FakeClock frozen at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the fake time, then moves it forward by the configured step.
func (c *FakeClock) Now() time.Time {
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Set pins the fake time.
func (c *FakeClock) Set(t time.Time) {
	c.current = t
}

// Advance moves the fake time by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// Tick makes every subsequent Now call advance the clock by d, so code that
// measures elapsed time between two Now calls observes exactly d.
func (c *FakeClock) Tick(d time.Duration) {
	c.step = d
}
