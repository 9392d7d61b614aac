package contagion

import "time"

// Clock is the time source used for expiry computation.
type Clock interface {
	Now() Timestamp
}

// SystemClock reads the process wall clock.
type SystemClock struct{}

func (SystemClock) Now() Timestamp {
	return TimestampOf(time.Now())
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() Timestamp

func (f ClockFunc) Now() Timestamp {
	return f()
}
