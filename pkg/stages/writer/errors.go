package writer

import "errors"

var (
	// ErrInitialization is returned by New for unusable settings or collaborators.
	ErrInitialization = errors.New("writer: initialization failed")

	// ErrAlreadyRecording is returned by Start while a session exists.
	ErrAlreadyRecording = errors.New("writer: already recording")

	// ErrNotRecording is returned by Stop when there is no live session.
	ErrNotRecording = errors.New("writer: not recording")

	// ErrStartFailed wraps failures preparing the output or the encoder session.
	ErrStartFailed = errors.New("writer: start failed")

	// ErrStopFailed wraps failures finalizing a session.
	ErrStopFailed = errors.New("writer: stop failed")

	// ErrClosed is returned by Start once Close has been called.
	ErrClosed = errors.New("writer: closed")
)
