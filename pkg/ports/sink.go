package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveSnapshot saves a frame image, e.g. the first frame of a recording.
	SaveSnapshot(name string, img image.Image) error

	// SaveRecordingJSON saves the summary of a finished recording as JSON.
	SaveRecordingJSON(data []byte) error
}
