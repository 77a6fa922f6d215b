// Package clock abstracts time.Now so schedule math can be tested with a
// fixed clock.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

var _ Clock = RealClock{}

// Fixed is a Clock that always returns the same instant. Intended for tests.
type Fixed struct {
	Time time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.Time
}
