package booking

import "time"

// Clock supplies the current time. Everything in the booking core reads
// time through an injected Clock, never from the ambient environment.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by the wall clock, in UTC.
func SystemClock() Clock { return systemClock{} }

// FixedClock is a Clock pinned to one instant, for tests.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
