// File: api/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Control exposes runtime counters for monitoring without binding the
// core to any metrics backend.

package api

// Control is the read/write surface over runtime metrics.
type Control interface {
	// Add increments a named counter by delta.
	Add(key string, delta int64)

	// Set overwrites a named counter.
	Set(key string, value int64)

	// Stats returns a snapshot of all counters.
	Stats() map[string]int64
}
