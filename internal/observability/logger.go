// Package observability defines shared logging primitives.
package observability

import (
	"fmt"
	"log"
	"strings"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// String builds a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Err builds an error field; a nil error renders as "<nil>".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// StdLogger adapts a standard library logger to the Logger interface.
type StdLogger struct {
	logger *log.Logger
	debug  bool
}

// NewStdLogger wraps the provided standard logger. Debug output is suppressed
// unless enabled.
func NewStdLogger(logger *log.Logger, debug bool) *StdLogger {
	return &StdLogger{logger: logger, debug: debug}
}

// Debug logs at debug level when enabled.
func (l *StdLogger) Debug(msg string, fields ...Field) {
	if l == nil || l.logger == nil || !l.debug {
		return
	}
	l.logger.Printf("DEBUG %s%s", msg, renderFields(fields))
}

// Info logs at info level.
func (l *StdLogger) Info(msg string, fields ...Field) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf("INFO %s%s", msg, renderFields(fields))
}

// Warn logs at warning level.
func (l *StdLogger) Warn(msg string, fields ...Field) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf("WARN %s%s", msg, renderFields(fields))
}

// Error logs at error level.
func (l *StdLogger) Error(msg string, fields ...Field) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf("ERROR %s%s", msg, renderFields(fields))
}

func renderFields(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", key, f.Value))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
