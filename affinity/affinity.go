// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific
// implementations live in build-tagged files.

package affinity

// Pin binds the calling OS thread to a logical CPU. Loop threads are
// already locked to their OS thread, so pinning from a thread-init
// callback pins the loop for its lifetime.
func Pin(cpuID int) error {
	return pinPlatform(cpuID)
}
