// Package clock is the discrete game-time source. Time only moves when Advance
// is called; every elapsed minute is delivered synchronously to listeners.
package clock

import "time"

// TimeSource reports the current game time.
type TimeSource interface {
	Now() time.Time
}

// Listener receives elapsed-time signals.
type Listener interface {
	// OnMinuteElapsed is delivered once per game minute. isHourBoundary is
	// true when the new time is exactly on the hour.
	OnMinuteElapsed(isHourBoundary bool)
	// OnHourElapsed is delivered after the minute signal on every hour boundary.
	OnHourElapsed()
}

// Clock is a manually advanced game clock.
type Clock struct {
	now       time.Time
	listeners []Listener
}

// New creates a clock starting at start, truncated to the minute.
func New(start time.Time) *Clock {
	return &Clock{now: start.Truncate(time.Minute)}
}

// Now implements TimeSource.
func (c *Clock) Now() time.Time {
	return c.now
}

// Set moves the clock without delivering any signals. Used when restoring state.
func (c *Clock) Set(t time.Time) {
	c.now = t.Truncate(time.Minute)
}

// Subscribe registers l for minute and hour signals, in registration order.
func (c *Clock) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Advance moves the clock forward by the given number of minutes.
func (c *Clock) Advance(minutes int) {
	for i := 0; i < minutes; i++ {
		c.now = c.now.Add(time.Minute)
		hour := c.now.Minute() == 0

		for _, l := range c.listeners {
			l.OnMinuteElapsed(hour)
		}
		if hour {
			for _, l := range c.listeners {
				l.OnHourElapsed()
			}
		}
	}
}

// AdvanceDays moves the clock forward by whole days.
func (c *Clock) AdvanceDays(days int) {
	c.Advance(days * 24 * 60)
}

// Day returns t truncated to its calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
