// Package ports defines the interfaces between the capture pipeline and its platform collaborators.
package ports

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug is for detailed debugging information.
	// Used for per-frame and per-component diagnostics.
	LevelDebug LogLevel = iota
	// LevelInfo is for informational messages.
	// Used for pipeline lifecycle logs.
	LevelInfo
	// LevelWarn is for warning messages.
	// Used for recoverable problems such as dropped frames.
	LevelWarn
	// LevelError is for error messages.
	// Used for unrecoverable problems that stop processing.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger is the logging port used by every pipeline stage. Message strings are
// go-l10n keys; arguments are formatted after translation.
type Logger interface {
	// Debug is for per-frame and per-stage detail. Console output coalesces
	// repeats of the same message so a 30 fps loop does not flood the terminal.
	Debug(msg string, args ...interface{})

	// Info reports pipeline progress: streaming and recording transitions.
	Info(msg string, args ...interface{})

	// Warn reports a recoverable problem such as a dropped frame or a
	// rejected reconfiguration.
	Warn(msg string, args ...interface{})

	// Error reports a failure the caller could not recover from.
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger tagged with a stage name (capture,
	// renderer, writer, ...).
	WithComponent(component string) Logger

	// WithField returns a Logger that carries key=value on every line, for
	// example the session ID of the recording being written.
	WithField(key, value string) Logger
}
