package writer

import (
	"sync"
	"time"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// recording is one live encoder session.
//
// mu serializes appends from the producer goroutine with the close performed
// by Stop, so once close returns the session sees no further appends.
type recording struct {
	id      string
	path    string
	session ports.EncoderSession
	input   ports.EncoderInput
	logger  ports.Logger // Carries the session ID

	mu       sync.Mutex
	closed   bool
	anchored bool
	anchor   time.Duration
	frames   int
	dropped  int
	lastPTS  time.Duration
}

type recordingStats struct {
	frames  int
	dropped int
	lastPTS time.Duration
}

// append re-times and appends frame. first reports whether the frame latched
// the anchor, ok whether it was appended.
func (r *recording) append(frame pipeline.Frame) (first, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, false
	}

	if !r.anchored {
		r.anchor = frame.Timestamp
		r.anchored = true
		first = true
	}

	pts := frame.Timestamp - r.anchor
	if pts < 0 || (r.frames > 0 && pts < r.lastPTS) || frame.Buffer == nil {
		r.dropped++
		return first, false
	}
	if !r.input.ReadyForMoreMediaData() {
		r.dropped++
		return first, false
	}
	if err := r.input.Append(frame.Buffer, pts); err != nil {
		r.dropped++
		return first, false
	}

	r.frames++
	r.lastPTS = pts
	return first, true
}

// close stops accepting appends and returns the final counters.
func (r *recording) close() recordingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return recordingStats{frames: r.frames, dropped: r.dropped, lastPTS: r.lastPTS}
}
