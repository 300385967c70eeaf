package core

import "time"

type Clock struct {
	start   time.Time
	elapsed time.Duration
	running bool
}

func NewClock() *Clock {
	return &Clock{}
}

// Update refreshes the elapsed time. Has no effect on a stopped clock.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = time.Since(c.start)
	}
}

// Start resets the elapsed time and starts counting.
func (c *Clock) Start() {
	c.start = time.Now()
	c.elapsed = 0
	c.running = true
}

// Stop freezes the clock without resetting the elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns the seconds counted at the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}
