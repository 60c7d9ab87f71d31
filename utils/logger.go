package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps "debug", "info", "warn" or "error" to a Level.
// Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled, timestamped logging throughout the application.
type Logger struct {
	out       *log.Logger
	err       *log.Logger
	min       Level
	component string
}

// NewLogger creates a Logger writing info and below to stdout and errors
// to stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr, LevelDebug)
}

// NewLoggerTo creates a Logger on arbitrary writers, dropping messages below min.
func NewLoggerTo(out, errOut io.Writer, min Level) *Logger {
	return &Logger{
		out: log.New(out, "", 0),
		err: log.New(errOut, "", 0),
		min: min,
	}
}

// Discard returns a Logger that writes nothing.
func Discard() *Logger {
	return NewLoggerTo(io.Discard, io.Discard, LevelError+1)
}

// With returns a copy of l that tags every line with component.
func (l *Logger) With(component string) *Logger {
	c := *l
	c.component = component
	return &c
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(min Level) { l.min = min }

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) emit(level Level, tag, format string, args ...any) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		msg = "[" + l.component + "] " + msg
	}
	line := fmt.Sprintf("[%s] %s %s", l.timestamp(), tag, msg)
	if level >= LevelError {
		l.err.Println(line)
		return
	}
	l.out.Println(line)
}

func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelInfo, "\033[32mINFO\033[0m ", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelWarn, "\033[33mWARN\033[0m ", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.emit(LevelError, "\033[31mERROR\033[0m", format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.emit(LevelDebug, "\033[36mDEBUG\033[0m", format, args...)
}
