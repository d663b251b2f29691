package models

import "time"

// NextEpochBoundary returns the first multiple of length strictly after now.
// Boundaries are aligned to multiples of length since the zero time, so for
// a 24h epoch every request in a given UTC day becomes claimable at the same
// midnight. A request placed exactly on a boundary waits the full next
// epoch.
func NextEpochBoundary(now time.Time, length time.Duration) time.Time {
	return now.Truncate(length).Add(length)
}
