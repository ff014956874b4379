// Package logger provides the verbose logger used by backsync.
// A Logger is created once by the entry point and passed to every service
// that needs it; there is no package-level logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Logger writes human-readable log lines. Debug, Info and Section are only
// printed in verbose mode; warnings are always printed.
type Logger struct {
	zl      zerolog.Logger
	out     *syncWriter
	verbose *atomic.Bool
}

// syncWriter serialises writes from concurrent workers and lets the output
// be swapped after creation.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// New creates a logger writing to w. A nil writer defaults to os.Stderr.
func New(w io.Writer, verbose bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	out := &syncWriter{w: w}
	console := zerolog.ConsoleWriter{
		Out:          out,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}

	l := &Logger{
		zl:      zerolog.New(console).Level(zerolog.DebugLevel),
		out:     out,
		verbose: &atomic.Bool{},
	}
	l.verbose.Store(verbose)
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, false)
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// SetVerbose enables or disables verbose logging. Child loggers created
// with With share the setting.
func (l *Logger) SetVerbose(v bool) {
	l.verbose.Store(v)
}

// IsVerbose returns true if verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	return l.verbose.Load()
}

// SetOutput redirects the logger and all its children to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w = w
}

// With returns a child logger that adds key=value to every line.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		zl:      l.zl.With().Interface(key, value).Logger(),
		out:     l.out,
		verbose: l.verbose,
	}
}

// Debug prints a message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if l.IsVerbose() {
		l.zl.Debug().Msgf(format, args...)
	}
}

// Info prints an informational message if verbose mode is enabled.
func (l *Logger) Info(format string, args ...any) {
	if l.IsVerbose() {
		l.zl.Info().Msgf(format, args...)
	}
}

// Section prints a section header if verbose mode is enabled.
func (l *Logger) Section(name string) {
	if l.IsVerbose() {
		l.zl.Info().Msg(fmt.Sprintf("=== %s ===", name))
	}
}

// Warn prints a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}
