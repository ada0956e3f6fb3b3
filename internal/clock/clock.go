// Package clock supplies the engine's only source of wall-clock time as an
// injectable dependency, so decision records can be produced with a frozen
// clock in tests.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the production Clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Frozen is a test Clock that always returns the same instant.
type Frozen struct {
	At time.Time
}

func (f Frozen) Now() time.Time { return f.At }
