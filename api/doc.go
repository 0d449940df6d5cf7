// Package api
// Author: momentics <momentics@gmail.com>
//
// Public contracts shared across the hioload-tcp runtime: the injected
// logging sink, common error values, and the runtime control surface.
// Concrete implementations live in adapters/ and control/.
package api
