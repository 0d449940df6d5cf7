// File: api/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Logger is the injected logging sink used by every runtime component.
// The runtime never talks to a process-global logger; whoever constructs
// an EventLoop or a Server decides where log lines go.

package api

import "fmt"

// Logger is a leveled, printf-style logging sink.
//
// Fatalf reports an unrecoverable bootstrap failure and must not return;
// implementations are expected to terminate the process.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// nopLogger discards everything except Fatalf, which panics so that
// bootstrap failures are never silently swallowed.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Fatalf(format string, args ...any) {
	panic("fatal: " + fmt.Sprintf(format, args...))
}

// NopLogger returns a Logger that discards all output. Fatalf panics.
func NopLogger() Logger { return nopLogger{} }
