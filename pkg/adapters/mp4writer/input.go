package mp4writer

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

type job struct {
	buf *pipeline.PixelBuffer
	pts time.Duration
}

// Input implements ports.EncoderInput.
type Input struct {
	session *Session
	origin  time.Duration

	mu       sync.Mutex
	jobs     chan job
	finished bool
}

// ReadyForMoreMediaData reports whether the encode queue has room.
func (in *Input) ReadyForMoreMediaData() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.finished || in.session.Status() != ports.EncoderWriting {
		return false
	}
	return len(in.jobs) < cap(in.jobs)
}

// Append queues buf for compression. The buffer is retained until it is encoded.
func (in *Input) Append(buf *pipeline.PixelBuffer, pts time.Duration) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.finished {
		return ErrFinished
	}
	if in.session.Status() != ports.EncoderWriting {
		return ErrNotWriting
	}
	if pts < in.origin {
		return fmt.Errorf("mp4writer: pts %v before session start %v", pts, in.origin)
	}

	buf.Retain()
	select {
	case in.jobs <- job{buf: buf, pts: pts - in.origin}:
		return nil
	default:
		buf.Release()
		return ErrNotReady
	}
}

// MarkAsFinished closes the encode queue. It is safe to call more than once.
func (in *Input) MarkAsFinished() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.finished {
		return
	}
	in.finished = true
	close(in.jobs)
}

var _ ports.EncoderInput = (*Input)(nil)
