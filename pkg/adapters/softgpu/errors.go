package softgpu

import "errors"

var (
	// ErrFunctionNotFound is returned for names missing from the function library.
	ErrFunctionNotFound = errors.New("softgpu: function not found")

	// ErrInvalidPipeline is returned when a pipeline descriptor cannot be compiled.
	ErrInvalidPipeline = errors.New("softgpu: invalid render pipeline")

	// ErrQueueFull is passed to completion handlers when a commit finds no free slot.
	ErrQueueFull = errors.New("softgpu: command queue full")

	// ErrQueueClosed is returned after the command queue was closed.
	ErrQueueClosed = errors.New("softgpu: command queue closed")

	// ErrAlreadyCommitted is returned when a command buffer is reused.
	ErrAlreadyCommitted = errors.New("softgpu: command buffer already committed")

	// ErrInvalidDraw is reported for draws the rasterizer does not support.
	ErrInvalidDraw = errors.New("softgpu: invalid draw")
)
