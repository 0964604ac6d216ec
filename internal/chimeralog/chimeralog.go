// Package chimeralog provides component-prefixed logging on top of the
// standard library's log package. Chimera's teacher codebase logs
// exclusively through stdlib log with a bracketed component prefix
// (e.g. "[daemon] ..."); no structured logging library (zap, zerolog,
// logrus) appears anywhere in it, so chimeralog keeps that idiom rather
// than introducing one.
package chimeralog

import (
	"log"
	"os"
)

// Logger prefixes every line with its component name in brackets,
// matching the teacher codebase's "[component] message" convention.
type Logger struct {
	prefix string
	std    *log.Logger
}

// New constructs a Logger for the named component, writing to stderr
// with the standard library's default flags.
func New(component string) *Logger {
	return &Logger{
		prefix: "[" + component + "] ",
		std:    log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Printf logs a formatted message under this logger's component prefix.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.std.Printf(l.prefix+format, args...)
}

// Println logs a message under this logger's component prefix.
func (l *Logger) Println(args ...interface{}) {
	l.std.Println(append([]interface{}{l.prefix[:len(l.prefix)-1]}, args...)...)
}
