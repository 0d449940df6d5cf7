// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Logging adapters bridging api.Logger to concrete backends. The
// default backend is zerolog; tests and benchmarks use the no-op sink
// from the api package directly.

package adapters

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-tcp/api"
)

// ZerologLogger adapts a zerolog.Logger to api.Logger.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

// NewDefaultLogger builds a timestamped zerolog sink on w, or stderr
// when w is nil.
func NewDefaultLogger(w io.Writer) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	return &ZerologLogger{l: zerolog.New(w).With().Timestamp().Logger()}
}

func (z *ZerologLogger) Debugf(format string, args ...any) {
	z.l.Debug().Msgf(format, args...)
}

func (z *ZerologLogger) Infof(format string, args ...any) {
	z.l.Info().Msgf(format, args...)
}

func (z *ZerologLogger) Warnf(format string, args ...any) {
	z.l.Warn().Msgf(format, args...)
}

func (z *ZerologLogger) Errorf(format string, args ...any) {
	z.l.Error().Msgf(format, args...)
}

// Fatalf logs at fatal level and terminates the process.
func (z *ZerologLogger) Fatalf(format string, args ...any) {
	z.l.Fatal().Msgf(format, args...)
}

var _ api.Logger = (*ZerologLogger)(nil)
