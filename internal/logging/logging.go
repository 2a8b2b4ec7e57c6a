// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging is the structured logger every core component is handed
// at construction time (KFA, PIDM's owner, LSR, the shim-Wi-Fi station).
package logging

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger wraps github.com/charmbracelet/log with a key-value call shape:
// logger.Info("msg", "k1", v1, "k2", v2).
type Logger struct {
	l *charmlog.Logger
}

// Options configures a new Logger.
type Options struct {
	Level      charmlog.Level
	ReportTime bool
	Output     io.Writer
}

// DefaultOptions returns sensible defaults: info level, timestamps on, stderr.
func DefaultOptions() Options {
	return Options{
		Level:      charmlog.InfoLevel,
		ReportTime: true,
		Output:     os.Stderr,
	}
}

// New builds a Logger for a named component (e.g. "kfa", "lsr", "shimwifi").
func New(component string, opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	l := charmlog.NewWithOptions(opts.Output, charmlog.Options{
		Level:           opts.Level,
		ReportTimestamp: opts.ReportTime,
		Prefix:          component,
	})
	return &Logger{l: l}
}

// NewNop returns a Logger that discards everything, for tests that don't
// want log noise but still need a non-nil *Logger to satisfy a constructor.
func NewNop() *Logger {
	return New("test", Options{Level: charmlog.FatalLevel + 1, Output: io.Discard})
}

// With returns a child Logger with fixed key/value pairs attached to every
// subsequent call, for a logger scoped to one component or tagged with an
// identifier such as a node address.
func (lg *Logger) With(kv ...any) *Logger {
	return &Logger{l: lg.l.With(kv...)}
}

func (lg *Logger) Debug(msg string, kv ...any) { lg.l.Debug(msg, kv...) }
func (lg *Logger) Info(msg string, kv ...any)  { lg.l.Info(msg, kv...) }
func (lg *Logger) Warn(msg string, kv ...any)  { lg.l.Warn(msg, kv...) }
func (lg *Logger) Error(msg string, kv ...any) { lg.l.Error(msg, kv...) }
