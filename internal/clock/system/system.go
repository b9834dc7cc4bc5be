// Package system provides the wall clock used to stamp job discovery times.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, truncated to whole seconds to match
// the precision of feed timestamps.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
