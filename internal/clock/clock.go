// Package clock provides a UTC-aware time source that can be fixed in
// tests. Every component that stamps rows takes a Clock rather than
// calling time.Now directly.
package clock

import "time"

// Clock yields the current instant in UTC.
type Clock interface {
	Now() time.Time
}

// System is the wall-clock implementation.
type System struct{}

// Now returns the current wall-clock time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a test clock pinned to a single instant.
type Fixed struct {
	Instant time.Time
}

// Now returns the pinned instant in UTC.
func (f Fixed) Now() time.Time {
	return f.Instant.UTC()
}

// At returns a Fixed clock pinned to t.
func At(t time.Time) Fixed {
	return Fixed{Instant: t}
}
