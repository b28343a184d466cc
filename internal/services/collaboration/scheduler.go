package collaboration

import "time"

// Scheduler runs one-shot delayed tasks. The reconnect logic holds at most
// one Timer at a time and stops it on Disconnect.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the cancel handle of a scheduled task
type Timer interface {
	// Stop returns true if the call prevented the task from running
	Stop() bool
}

// RealScheduler schedules on the runtime timer wheel
type RealScheduler struct{}

// AfterFunc runs f on its own goroutine after d
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
