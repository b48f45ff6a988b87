package game

import "time"

// Timer is the part of *time.Timer the game needs.
type Timer interface {
	Stop() bool
}

// Clock supplies time and deferred callbacks. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock backed by the time package.
var SystemClock Clock = systemClock{}
