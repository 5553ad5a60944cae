// Package logging provides leveled key=value logging for the gatehouse
// daemon. Loggers are constructed once and handed to the components that
// need them; there is no package-level logger.
package logging

import (
	"fmt"
	"strings"
)

// Level represents the severity of a log message
type Level string

const (
	// LevelDebug is for debug messages
	LevelDebug Level = "debug"
	// LevelInfo is for informational messages
	LevelInfo Level = "info"
	// LevelWarn is for warning messages
	LevelWarn Level = "warn"
	// LevelError is for error messages
	LevelError Level = "error"
)

// Logger is the logging capability injected into components
type Logger interface {
	Debug(message string, keyvals ...interface{})
	Info(message string, keyvals ...interface{})
	Warn(message string, keyvals ...interface{})
	Error(message string, keyvals ...interface{})
}

// Noop is a Logger that discards everything. It is the default for
// components constructed without an explicit logger.
type Noop struct{}

func (Noop) Debug(message string, keyvals ...interface{}) {}
func (Noop) Info(message string, keyvals ...interface{})  {}
func (Noop) Warn(message string, keyvals ...interface{})  {}
func (Noop) Error(message string, keyvals ...interface{}) {}

// formatValue formats a value for logfmt, quoting if necessary
func formatValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	// Quote if contains space, equals, or quotes
	if strings.ContainsAny(s, " =\"") {
		// Escape existing quotes
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}

// formatKeyvals renders alternating key/value pairs as logfmt
func formatKeyvals(keyvals []interface{}) string {
	var parts []string
	for i := 0; i+1 < len(keyvals); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%s", keyvals[i], formatValue(keyvals[i+1])))
	}
	return strings.Join(parts, " ")
}
