package types

import (
	"log"
	"os"
)

// Logger is the leveled logging interface used throughout dvhost. It mirrors
// the shape of a standard structured logger without pulling in a specific
// third-party implementation, so callers can adapt zap/zerolog/logrus
// equally well.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LogLevel is the per-module verbosity threshold, propagated from a module
// instance's "logLevel" attribute.
type LogLevel int32

const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

type stdLogger struct {
	prefix string
	level  LogLevel
	out    *log.Logger
}

// DefaultLogger returns a Logger backed by the standard library, writing to
// stderr with the given prefix. It is the zero-configuration logger used
// when no Option overrides it.
func DefaultLogger(prefix string) Logger {
	return &stdLogger{
		prefix: prefix,
		level:  LogLevelInfo,
		out:    log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// NewLevelLogger returns a Logger that filters below level.
func NewLevelLogger(prefix string, level LogLevel) Logger {
	return &stdLogger{prefix: prefix, level: level, out: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
}

func (l *stdLogger) log(level LogLevel, tag, format string, args ...interface{}) {
	if level > l.level {
		return
	}
	l.out.Printf("["+tag+"] "+l.prefix+": "+format, args...)
}

func (l *stdLogger) Debugf(format string, args ...interface{}) { l.log(LogLevelDebug, "DEBUG", format, args...) }
func (l *stdLogger) Infof(format string, args ...interface{})  { l.log(LogLevelInfo, "INFO", format, args...) }
func (l *stdLogger) Warnf(format string, args ...interface{})  { l.log(LogLevelWarning, "WARN", format, args...) }
func (l *stdLogger) Errorf(format string, args ...interface{}) { l.log(LogLevelError, "ERROR", format, args...) }

// NopLogger discards everything; useful as a test default.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// NopLogger returns a Logger whose methods are all no-ops.
func NopLogger() Logger { return nopLogger{} }
