package rig

import "time"

// Clock is a virtual fed.Clock. Millis is set by the replay loop; the wall
// clock is epoch plus elapsed time plus any adjustment made with SetClock.
// Only the goroutine that ticks the device may use it.
type Clock struct {
	ms     int64
	epoch  time.Time
	offset time.Duration
}

// NewClock starts at 0 ms with wall time epoch.
func NewClock(epoch time.Time) *Clock {
	return &Clock{epoch: epoch}
}

// Set moves virtual time to ms since boot.
func (c *Clock) Set(ms int64) { c.ms = ms }

func (c *Clock) Millis() int64 { return c.ms }

func (c *Clock) Now() time.Time {
	return c.epoch.Add(time.Duration(c.ms)*time.Millisecond + c.offset)
}

func (c *Clock) SetClock(t time.Time) {
	c.offset = t.Sub(c.epoch) - time.Duration(c.ms)*time.Millisecond
}
