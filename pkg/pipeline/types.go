package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Pixel Formats
// =============================================================================

// PixelFormat identifies the memory layout of a pixel buffer.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatBGRA32              // Packed BGRA, 4 bytes per pixel
	PixelFormatNV12                // YCbCr 4:2:0 bi-planar (Y + interleaved CbCr), full range
	PixelFormatRGBA32              // Packed RGBA, 4 bytes per pixel (drawable format)
)

// String returns the canonical name of the pixel format.
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatBGRA32:
		return "bgra"
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatRGBA32:
		return "rgba"
	default:
		return "unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatNV12:
		return 2
	case PixelFormatBGRA32, PixelFormatRGBA32:
		return 1
	default:
		return 0
	}
}

// IsPlanar reports whether the format stores its components in more than one plane.
func (p PixelFormat) IsPlanar() bool {
	return p.PlaneCount() > 1
}

// ParsePixelFormat parses a pixel format name.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bgra", "bgra32", "32bgra":
		return PixelFormatBGRA32, nil
	case "nv12", "420f":
		return PixelFormatNV12, nil
	case "rgba", "rgba32":
		return PixelFormatRGBA32, nil
	default:
		return PixelFormatUnknown, fmt.Errorf("unknown pixel format %q", s)
	}
}

// =============================================================================
// Frames
// =============================================================================

// Plane is one plane of pixel memory.
type Plane struct {
	Data   []byte
	Width  int // Width in samples (chroma planes count CbCr pairs)
	Height int
	Stride int // Bytes per row
}

// Frame is one captured image buffer with its presentation timestamp.
//
// Buffer is owned by the capture subsystem and is valid only for the duration
// of the ConsumeFrame call that delivers it. Consumers that keep the pixels
// past the callback must Retain the buffer and Release it when done.
type Frame struct {
	Buffer    *PixelBuffer
	Timestamp time.Duration // Monotonic, relative to the capture clock
	Sequence  uint64        // Position in the capture stream, starting at 0
}

// Format returns the pixel format of the frame buffer.
func (f Frame) Format() PixelFormat {
	if f.Buffer == nil {
		return PixelFormatUnknown
	}
	return f.Buffer.Format()
}
