package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/camlab/pkg/pipeline"
)

// VideoCodec names the compression of a video track.
type VideoCodec string

const (
	CodecJPEG VideoCodec = "jpeg"
)

// DefaultTimescale is the media timescale used for recordings (ticks per second).
const DefaultTimescale = 600

// VideoSettings configures the video input of an encoder session.
type VideoSettings struct {
	Codec     VideoCodec
	Width     int
	Height    int
	FrameRate float64
	Quality   int // JPEG quality 1-100
	Timescale int // Media ticks per second
}

// Validate reports whether the settings are usable by an encoder.
func (s VideoSettings) Validate() error {
	if s.Codec == "" {
		return errors.New("video settings: codec is required")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("video settings: invalid size %dx%d", s.Width, s.Height)
	}
	if s.FrameRate <= 0 {
		return fmt.Errorf("video settings: invalid frame rate %v", s.FrameRate)
	}
	if s.Quality < 0 || s.Quality > 100 {
		return fmt.Errorf("video settings: quality %d out of range", s.Quality)
	}
	if s.Timescale <= 0 {
		return fmt.Errorf("video settings: invalid timescale %d", s.Timescale)
	}
	return nil
}

// EncoderStatus is the lifecycle status of an encoder session.
type EncoderStatus int

const (
	EncoderUnknown EncoderStatus = iota
	EncoderWriting
	EncoderCompleted
	EncoderFailed
	EncoderCancelled
)

func (s EncoderStatus) String() string {
	switch s {
	case EncoderWriting:
		return "writing"
	case EncoderCompleted:
		return "completed"
	case EncoderFailed:
		return "failed"
	case EncoderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EncoderFactory opens encoder sessions.
type EncoderFactory interface {
	// NewSession opens a session writing to path. The file must not exist.
	NewSession(path string) (EncoderSession, error)
}

// EncoderSession accepts timestamped pixel buffers and produces a sealed video file.
type EncoderSession interface {
	// AddVideoInput adds the video input. Only valid before StartWriting.
	AddVideoInput(settings VideoSettings) (EncoderInput, error)

	// StartWriting opens the output and starts the media timeline at the given time.
	StartWriting(at time.Duration) error

	// Status returns the session status.
	Status() EncoderStatus

	// Err returns the error that failed the session, if any.
	Err() error

	// Finish seals the output. Inputs must be marked finished first.
	Finish(ctx context.Context) error

	// Cancel abandons the session and removes partial output.
	Cancel()
}

// EncoderInput receives the buffers of one track.
type EncoderInput interface {
	// ReadyForMoreMediaData reports whether Append would accept a buffer now.
	ReadyForMoreMediaData() bool

	// Append queues buf for encoding at presentation time pts. The input
	// retains buf for as long as it needs the pixels.
	Append(buf *pipeline.PixelBuffer, pts time.Duration) error

	// MarkAsFinished signals that no more buffers will be appended.
	MarkAsFinished()
}
