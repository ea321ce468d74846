package logger

import (
	"fmt"
	"sync"

	"github.com/user/camlab/pkg/ports"
)

// NoopLogger discards everything. cmd/camlab uses it for --quiet and most
// stage tests use it to keep output clean.
type NoopLogger struct{}

// NewNoop creates a new no-op logger.
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, args ...interface{}) {}
func (l *NoopLogger) Info(msg string, args ...interface{})  {}
func (l *NoopLogger) Warn(msg string, args ...interface{})  {}
func (l *NoopLogger) Error(msg string, args ...interface{}) {}

func (l *NoopLogger) WithComponent(component string) ports.Logger { return l }
func (l *NoopLogger) WithField(key, value string) ports.Logger     { return l }

// Entry is one line captured by a Recorder. Message is formatted but not
// translated.
type Entry struct {
	Level     ports.LogLevel
	Component string
	Fields    map[string]string
	Message   string
}

// Recorder keeps every line in memory. Loggers derived from it share the same
// entry list.
type Recorder struct {
	component string
	fields    map[string]string
	log       *entryLog
}

type entryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{log: &entryLog{}}
}

// Entries returns a copy of the captured lines in order.
func (r *Recorder) Entries() []Entry {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	return append([]Entry(nil), r.log.entries...)
}

func (r *Recorder) Debug(msg string, args ...interface{}) { r.add(ports.LevelDebug, msg, args) }
func (r *Recorder) Info(msg string, args ...interface{})  { r.add(ports.LevelInfo, msg, args) }
func (r *Recorder) Warn(msg string, args ...interface{})  { r.add(ports.LevelWarn, msg, args) }
func (r *Recorder) Error(msg string, args ...interface{}) { r.add(ports.LevelError, msg, args) }

func (r *Recorder) WithComponent(component string) ports.Logger {
	return &Recorder{component: component, fields: r.fields, log: r.log}
}

func (r *Recorder) WithField(key, value string) ports.Logger {
	fields := make(map[string]string, len(r.fields)+1)
	for k, v := range r.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Recorder{component: r.component, fields: fields, log: r.log}
}

func (r *Recorder) add(level ports.LogLevel, msg string, args []interface{}) {
	e := Entry{Level: level, Component: r.component, Fields: r.fields, Message: fmt.Sprintf(msg, args...)}
	r.log.mu.Lock()
	r.log.entries = append(r.log.entries, e)
	r.log.mu.Unlock()
}
