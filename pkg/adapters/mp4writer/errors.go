package mp4writer

import "errors"

var (
	// ErrUnsupportedCodec is returned for video settings this writer cannot produce.
	ErrUnsupportedCodec = errors.New("mp4writer: unsupported codec")

	// ErrInputExists is returned when a second video input is added.
	ErrInputExists = errors.New("mp4writer: video input already added")

	// ErrNoInput is returned when writing starts without a video input.
	ErrNoInput = errors.New("mp4writer: no video input")

	// ErrNotWriting is returned when the session is not in the writing state.
	ErrNotWriting = errors.New("mp4writer: session not writing")

	// ErrNotReady is returned by Append when the encode queue is full.
	ErrNotReady = errors.New("mp4writer: input not ready for more media data")

	// ErrFinished is returned by Append after MarkAsFinished.
	ErrFinished = errors.New("mp4writer: input finished")
)
