//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without sched_setaffinity.

package affinity

import "github.com/momentics/hioload-tcp/api"

func pinPlatform(int) error {
	return api.ErrNotSupported
}
