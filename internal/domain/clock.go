package domain

import "time"

// Clock provides the current time to the engine so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the real UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the time it was constructed with.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
