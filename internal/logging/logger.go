// Package logging provides structured logging for the boxmin
// minimization service. A small JSON core does the writing; callers
// normally talk to it through the zap front-end in zapadapter.go.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "INFO"
	}
}

// Logger writes JSON log entries at or above a minimum level. It is
// safe for concurrent use.
type Logger struct {
	level  Level
	mu     *sync.Mutex
	output io.Writer
	fields map[string]interface{}
}

// New creates a Logger writing to output at the given minimum level.
func New(level Level, output io.Writer) *Logger {
	return &Logger{
		level:  level,
		mu:     &sync.Mutex{},
		output: output,
		fields: map[string]interface{}{},
	}
}

// WithFields returns a Logger that attaches the given fields to every
// entry. The receiver is not modified.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, mu: l.mu, output: l.output, fields: merged}
}

// WithField returns a Logger with one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *Logger) enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) write(level Level, msg string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"message":   msg,
	}
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"marshal_error":%q}`,
			level.String(), msg, err.Error()))
	}
	data = append(data, '\n')

	l.mu.Lock()
	_, _ = l.output.Write(data)
	l.mu.Unlock()

	if level == FatalLevel {
		os.Exit(1)
	}
}

// Debug logs at DebugLevel.
func (l *Logger) Debug(msg string, fields map[string]interface{}) { l.write(DebugLevel, msg, fields) }

// Info logs at InfoLevel.
func (l *Logger) Info(msg string, fields map[string]interface{}) { l.write(InfoLevel, msg, fields) }

// Warn logs at WarnLevel.
func (l *Logger) Warn(msg string, fields map[string]interface{}) { l.write(WarnLevel, msg, fields) }

// Error logs at ErrorLevel.
func (l *Logger) Error(msg string, fields map[string]interface{}) { l.write(ErrorLevel, msg, fields) }

// Fatal logs at FatalLevel, then exits.
func (l *Logger) Fatal(msg string, fields map[string]interface{}) { l.write(FatalLevel, msg, fields) }
