package calf

import "time"

// Clock abstracts time for the polling loops so the challenge windows
// can be tested without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock used outside of tests.
var SystemClock Clock = systemClock{}
