package id

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger provides structured logging for generators, node providers and the
// wire server. Fields are alternating key-value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, fields ...interface{}) {}
func (l *NoOpLogger) Info(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Warn(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Error(msg string, fields ...interface{}) {}

// StdLogger writes one line per entry as "prefix [LEVEL] msg k=v ...".
// Meant for development; use ZapLogger in production.
type StdLogger struct {
	prefix string
	mu     sync.Mutex
	out    io.Writer
}

func NewStdLogger(prefix string) *StdLogger {
	return &StdLogger{prefix: prefix, out: os.Stderr}
}

// NewStdLoggerTo writes to w instead of stderr.
func NewStdLoggerTo(prefix string, w io.Writer) *StdLogger {
	return &StdLogger{prefix: prefix, out: w}
}

func (l *StdLogger) Debug(msg string, fields ...interface{}) {
	l.log("DEBUG", msg, fields...)
}

func (l *StdLogger) Info(msg string, fields ...interface{}) {
	l.log("INFO", msg, fields...)
}

func (l *StdLogger) Warn(msg string, fields ...interface{}) {
	l.log("WARN", msg, fields...)
}

func (l *StdLogger) Error(msg string, fields ...interface{}) {
	l.log("ERROR", msg, fields...)
}

func (l *StdLogger) log(level string, msg string, fields ...interface{}) {
	var b strings.Builder
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteByte(' ')
	}
	b.WriteString("[" + level + "] " + msg)
	// a trailing key without a value is dropped
	for i := 0; i+1 < len(fields); i += 2 {
		b.WriteString(" " + toString(fields[i]) + "=" + toString(fields[i+1]))
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	if out == nil {
		out = os.Stderr
	}
	_, _ = io.WriteString(out, b.String())
}

func toString(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
