// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime counters exposed through api.Control. The server wires in
// accept and connection-lifetime counters; applications may add their
// own through the same registry.
package control
