//go:build linux

// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server configuration and functional options.

package server

import (
	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/reactor"
)

// Config holds the server-side parameters fixed at construction.
type Config struct {
	Name          string // used in connection names and log lines
	Addr          string // TCP bind address, e.g. ":9000"
	ReusePort     bool   // bind with SO_REUSEPORT
	Loops         int    // sub-loop count; 0 = all I/O on the base loop
	HighWaterMark int    // per-connection output threshold; 0 = default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:  "hioload-tcp",
		Addr:  ":9000",
		Loops: 0,
	}
}

// Option customizes server initialization.
type Option func(*Server)

// WithLogger injects the logging sink for the server and everything it
// constructs. Defaults to a no-op sink.
func WithLogger(log api.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithLoops overrides the configured sub-loop count.
func WithLoops(n int) Option {
	return func(s *Server) { s.cfg.Loops = n }
}

// WithReusePort binds the listener with SO_REUSEPORT.
func WithReusePort(enable bool) Option {
	return func(s *Server) { s.cfg.ReusePort = enable }
}

// WithHighWaterMark overrides the per-connection output threshold.
func WithHighWaterMark(n int) Option {
	return func(s *Server) { s.cfg.HighWaterMark = n }
}

// WithThreadInit runs cb once on every sub-loop thread at startup.
func WithThreadInit(cb reactor.ThreadInitCallback) Option {
	return func(s *Server) { s.threadInit = cb }
}

// WithCPUPinning pins sub-loop thread k to CPU (offset+k) mod NumCPU.
func WithCPUPinning(offset int) Option {
	return func(s *Server) {
		s.pinCPUs = true
		s.pinOffset = offset
	}
}
