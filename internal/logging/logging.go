package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

const (
	levelDebug = 10
	levelInfo  = 20
	levelWarn  = 30
	levelError = 40
)

type Logger struct {
	level  int
	prefix string
	base   *log.Logger
}

func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

func NewWithWriter(level string, w io.Writer) *Logger {
	return &Logger{level: parseLevel(level), base: log.New(w, "", log.LstdFlags)}
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *Logger {
	return &Logger{level: levelError + 1, base: log.New(io.Discard, "", 0)}
}

// Named returns a child logger whose lines carry a "[name]" component tag.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{level: l.level, prefix: l.prefix + "[" + name + "] ", base: l.base}
}

func parseLevel(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *Logger) logf(level int, tag, format string, args ...any) {
	if l == nil || level < l.level {
		return
	}
	l.base.Printf(tag+l.prefix+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(levelDebug, "[DEBUG] ", format, args...) }

func (l *Logger) Infof(format string, args ...any) { l.logf(levelInfo, "[INFO] ", format, args...) }

func (l *Logger) Warnf(format string, args ...any) { l.logf(levelWarn, "[WARN] ", format, args...) }

func (l *Logger) Errorf(format string, args ...any) { l.logf(levelError, "[ERROR] ", format, args...) }
