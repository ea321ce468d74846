// Package logger provides logging implementations.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
	"github.com/user/camlab/pkg/ports"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// DefaultRepeatWindow is how long a Debug or Warn line is held back after it
// was last printed with the same component and message key.
const DefaultRepeatWindow = time.Second

type field struct {
	key, value string
}

// ConsoleLogger writes pipeline logs to a terminal. Info and Debug go to the
// standard stream, Warn and Error to the error stream.
//
// Frame loops log the same Debug or Warn key many times per second; repeats
// inside the repeat window are counted instead of printed, and the count is
// appended to the next line that gets through.
type ConsoleLogger struct {
	level     ports.LogLevel
	component string
	fields    []field
	color     bool
	out       *output
	repeats   *repeatFilter
}

// output is shared by every logger derived from one root so lines from
// different stages do not interleave mid-line.
type output struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

// NewConsole creates a console logger on os.Stdout and os.Stderr.
// Color output is enabled when stdout is a terminal.
func NewConsole(level ports.LogLevel) *ConsoleLogger {
	l := NewConsoleWriter(level, os.Stdout, os.Stderr)
	l.color = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return l
}

// NewConsoleWriter creates an uncolored console logger on the given writers.
func NewConsoleWriter(level ports.LogLevel, stdout, stderr io.Writer) *ConsoleLogger {
	return &ConsoleLogger{
		level:   level,
		out:     &output{stdout: stdout, stderr: stderr},
		repeats: newRepeatFilter(DefaultRepeatWindow, time.Now),
	}
}

// SetRepeatWindow changes the coalescing window for this logger and all loggers
// derived from it. Zero disables coalescing.
func (l *ConsoleLogger) SetRepeatWindow(d time.Duration) {
	l.repeats.setWindow(d)
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	if l.level > ports.LevelDebug {
		return
	}
	l.log(ports.LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	if l.level > ports.LevelInfo {
		return
	}
	l.log(ports.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	if l.level > ports.LevelWarn {
		return
	}
	l.log(ports.LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	if l.level > ports.LevelError {
		return
	}
	l.log(ports.LevelError, msg, args...)
}

// WithComponent returns a logger tagged with the stage name. Fields are kept.
func (l *ConsoleLogger) WithComponent(component string) ports.Logger {
	c := *l
	c.component = component
	return &c
}

// WithField returns a logger that prints key=value after the component name.
func (l *ConsoleLogger) WithField(key, value string) ports.Logger {
	c := *l
	c.fields = make([]field, 0, len(l.fields)+1)
	c.fields = append(c.fields, l.fields...)
	c.fields = append(c.fields, field{key: key, value: value})
	return &c
}

func (l *ConsoleLogger) prefix() string {
	if l.component == "" && len(l.fields) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(l.component)
	for i, f := range l.fields {
		if i > 0 || l.component != "" {
			b.WriteByte(' ')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(f.value)
	}
	b.WriteByte(']')
	return b.String()
}

func (l *ConsoleLogger) log(level ports.LogLevel, msg string, args ...interface{}) {
	var suppressed int
	if level == ports.LevelDebug || level == ports.LevelWarn {
		ok, n := l.repeats.allow(l.component + "\x00" + msg)
		if !ok {
			return
		}
		suppressed = n
	}

	line := l10n.F(msg, args...)
	if suppressed > 0 {
		line += l10n.F(" (%d similar lines suppressed)", suppressed)
	}

	if p := l.prefix(); p != "" {
		if l.color {
			line = fmt.Sprintf("%s%s%s %s", colorCyan, p, colorReset, line)
		} else {
			line = p + " " + line
		}
	}

	if l.color {
		switch level {
		case ports.LevelDebug:
			line = colorGray + line + colorReset
		case ports.LevelWarn:
			line = colorYellow + line + colorReset
		case ports.LevelError:
			line = colorRed + line + colorReset
		}
	}

	w := l.out.stdout
	if level >= ports.LevelWarn {
		w = l.out.stderr
	}
	l.out.mu.Lock()
	fmt.Fprintln(w, line)
	l.out.mu.Unlock()
}

// repeatFilter tracks when each message key was last printed.
type repeatFilter struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	seen   map[string]*repeatState
}

type repeatState struct {
	last       time.Time
	suppressed int
}

func newRepeatFilter(window time.Duration, now func() time.Time) *repeatFilter {
	return &repeatFilter{window: window, now: now, seen: make(map[string]*repeatState)}
}

func (r *repeatFilter) setWindow(d time.Duration) {
	r.mu.Lock()
	r.window = d
	r.mu.Unlock()
}

// allow reports whether key may be printed now and how many repeats were
// swallowed since it was last printed. Keys are format strings, so the map
// stays as small as the message lexicon.
func (r *repeatFilter) allow(key string) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.window <= 0 {
		return true, 0
	}
	now := r.now()
	st, ok := r.seen[key]
	if !ok {
		r.seen[key] = &repeatState{last: now}
		return true, 0
	}
	if now.Sub(st.last) < r.window {
		st.suppressed++
		return false, 0
	}
	n := st.suppressed
	st.last = now
	st.suppressed = 0
	return true, n
}
