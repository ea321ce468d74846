package ports

import (
	"context"

	"github.com/user/camlab/pkg/pipeline"
)

// MediaType identifies a kind of capture hardware access.
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
)

func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Authorizer gates access to capture hardware.
type Authorizer interface {
	// RequestAccess asks for access to the media type and reports whether it was granted.
	// It may block until the user or the platform answers.
	RequestAccess(ctx context.Context, media MediaType) (bool, error)
}

// DeviceType identifies a class of camera device.
type DeviceType int

const (
	DeviceDualCamera DeviceType = iota
	DeviceWideAngleCamera
)

func (d DeviceType) String() string {
	switch d {
	case DeviceDualCamera:
		return "dual"
	case DeviceWideAngleCamera:
		return "wide"
	default:
		return "unknown"
	}
}

// DevicePosition is the physical position of a camera.
type DevicePosition int

const (
	PositionBack DevicePosition = iota
	PositionFront
)

func (p DevicePosition) String() string {
	if p == PositionFront {
		return "front"
	}
	return "back"
}

// Orientation is the orientation frames are delivered in.
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationLandscape
)

func (o Orientation) String() string {
	if o == OrientationLandscape {
		return "landscape"
	}
	return "portrait"
}

// CameraSystem discovers camera devices.
type CameraSystem interface {
	// DefaultDevice returns the default device of the given type at the given
	// position, or false when none is available.
	DefaultDevice(deviceType DeviceType, position DevicePosition) (CaptureDevice, bool)
}

// StreamConfig describes the frames a device should produce.
type StreamConfig struct {
	Width       int
	Height      int
	PixelFormat pipeline.PixelFormat
	FrameRate   float64
	Orientation Orientation
}

// CaptureDevice is a camera that produces a stream of frames.
type CaptureDevice interface {
	// ID returns a stable identifier for the device.
	ID() string

	// Type returns the device class.
	Type() DeviceType

	// Stream produces frames until ctx is cancelled or the device fails.
	// deliver is called serially on the calling goroutine; the device releases
	// each frame buffer after deliver returns.
	Stream(ctx context.Context, cfg StreamConfig, deliver func(pipeline.Frame)) error
}
