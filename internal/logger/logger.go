// Package logger provides a small leveled logger for the application.
// Three levels: off (silent), normal (info/warn/error), verbose (adds
// debug). Output usually goes to a log file so spoken interaction stays
// clean. Safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level controls the verbosity of the logger.
type Level int

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// Logger is a leveled logger. All methods are safe for concurrent use.
type Logger struct {
	mu    sync.RWMutex
	level Level
	out   *log.Logger
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		level: level,
		out:   log.New(out, "", log.Ltime),
	}
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) emit(min Level, tag, format string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.level >= min {
		l.out.Output(3, tag+" "+fmt.Sprintf(format, args...))
	}
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	l.emit(LevelVerbose, "[DBG]", format, args...)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelNormal, "[INF]", format, args...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelNormal, "[WRN]", format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.emit(LevelNormal, "[ERR]", format, args...)
}
