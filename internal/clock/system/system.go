// Package system provides the real clock and sleeper used outside tests.
package system

import "time"

// Clock reads and waits on real time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time. The monotonic reading is kept so elapsed
// intervals survive wall-clock steps.
func (Clock) Now() time.Time {
	return time.Now()
}

// Sleep blocks the calling goroutine for d.
func (Clock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
