// Package dlog provides the scheduler's structured logger: one instance per
// scheduler run, with per-node child loggers carrying persistent fields. It
// replaces a process-wide mutable logger registry with an explicit instance
// the caller owns and drops at teardown.
package dlog

import (
	"os"
	"strings"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the scheduler-scoped structured logger.
type Logger struct {
	l *logiface.Logger[*izerolog.Event]
}

// New builds a Logger writing JSON lines to w (typically os.Stderr), gated
// at minLevel ("emerg".."trace", case-insensitive; unrecognized values fall
// back to "info").
func New(w *os.File, minLevel string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{
		l: logiface.New[*izerolog.Event](
			izerolog.WithZerolog(zl),
			logiface.WithLevel[*izerolog.Event](parseLevel(minLevel)),
		),
	}
}

func parseLevel(s string) logiface.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "emerg", "emergency":
		return logiface.LevelEmergency
	case "alert":
		return logiface.LevelAlert
	case "crit", "critical":
		return logiface.LevelCritical
	case "err", "error":
		return logiface.LevelError
	case "warning", "warn":
		return logiface.LevelWarning
	case "notice":
		return logiface.LevelNotice
	case "debug":
		return logiface.LevelDebug
	case "trace":
		return logiface.LevelTrace
	case "info", "informational", "":
		return logiface.LevelInformational
	default:
		return logiface.LevelInformational
	}
}

// ForNode returns a child Logger with a persistent "node" field, used by
// the scheduler to give every worker's log lines a stable node identity
// without repeating the field on each call.
func (l *Logger) ForNode(nodeID string) *Logger {
	return &Logger{l: l.l.Clone().Str("node", nodeID).Logger()}
}

// Notice logs at the "notice" level, used by the scheduler for unusual but
// non-fatal events, e.g. a worker retiring via the system-exit path.
func (l *Logger) Notice(msg string, fields map[string]any) {
	b := l.l.Notice()
	for k, v := range fields {
		b = b.Interface(k, v)
	}
	b.Log(msg)
}

// Info logs at the "info" level.
func (l *Logger) Info(msg string, fields map[string]any) {
	b := l.l.Info()
	for k, v := range fields {
		b = b.Interface(k, v)
	}
	b.Log(msg)
}

// Err logs at the "error" level.
func (l *Logger) Err(msg string, err error, fields map[string]any) {
	b := l.l.Err()
	if err != nil {
		b = b.Err(err)
	}
	for k, v := range fields {
		b = b.Interface(k, v)
	}
	b.Log(msg)
}

// Debug logs at the "debug" level.
func (l *Logger) Debug(msg string, fields map[string]any) {
	b := l.l.Debug()
	for k, v := range fields {
		b = b.Interface(k, v)
	}
	b.Log(msg)
}
