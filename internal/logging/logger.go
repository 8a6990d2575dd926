// Package logging provides the leveled logger used across keyrotator.
// Secret values must always be wrapped in Secret before logging.
package logging

import (
	"fmt"
	"os"
	"strings"
)

// Logger writes leveled, optionally colored messages to stderr.
type Logger struct {
	debug   bool
	noColor bool
}

// New creates a logger. Debug messages are suppressed unless debug is true.
func New(debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("\033[32m✓\033[0m", "✓", fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("\033[33m⚠\033[0m", "⚠", fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("\033[31m✗\033[0m", "✗", fmt.Sprintf(format, args...))
}

// Debug logs a message only when debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write("\033[36m[DEBUG]\033[0m", "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) write(colorPrefix, plainPrefix, msg string) {
	prefix := colorPrefix
	if l.noColor {
		prefix = plainPrefix
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", prefix, msg)
}

// Secret is a string whose value is never rendered by the fmt package.
// Wrap access-key secrets in Secret before passing them to the logger.
type Secret string

// String always returns a redacted placeholder.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString always returns a redacted placeholder for %#v formatting.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces occurrences of the given secrets in s with a placeholder.
// Trivially short values are left alone to avoid mangling ordinary text.
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if len(secret) > 3 {
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
