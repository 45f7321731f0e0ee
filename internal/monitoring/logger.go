// Package monitoring routes diagnostic output of the evaluator through a
// single replaceable sink.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger so tests can mute or capture output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Logger prefixes every line with a bracketed component tag, e.g. "[sweep]".
type Logger struct {
	prefix string
}

// NewLogger returns a Logger for the named component.
func NewLogger(component string) Logger {
	return Logger{prefix: "[" + component + "] "}
}

// Printf logs an informational line.
func (l Logger) Printf(format string, v ...interface{}) {
	Logf("%s%s", l.prefix, fmt.Sprintf(format, v...))
}

// Warnf logs a recoverable problem. The run continues.
func (l Logger) Warnf(format string, v ...interface{}) {
	Logf("%sWARNING: %s", l.prefix, fmt.Sprintf(format, v...))
}
