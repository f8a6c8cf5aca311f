package mergebounce

import (
	"time"
)

// Timer is a handle to a scheduled callback. Stop prevents the callback from
// running if it has not started yet, and reports whether it did so.
type Timer interface {
	Stop() bool
}

// Clock is the time source and scheduler used by a Mergebouncer.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock schedules callbacks with time.AfterFunc.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
