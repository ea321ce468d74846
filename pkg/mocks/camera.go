package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/camlab/pkg/pipeline"
	"github.com/user/camlab/pkg/ports"
)

// Authorizer is a mock implementation of ports.Authorizer.
type Authorizer struct {
	RequestAccessFunc func(ctx context.Context, media ports.MediaType) (bool, error)

	mu sync.Mutex
	// Recorded calls for verification
	Requests []ports.MediaType
}

func (m *Authorizer) RequestAccess(ctx context.Context, media ports.MediaType) (bool, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, media)
	m.mu.Unlock()
	if m.RequestAccessFunc != nil {
		return m.RequestAccessFunc(ctx, media)
	}
	return true, nil
}

var _ ports.Authorizer = (*Authorizer)(nil)

// CameraSystem is a mock implementation of ports.CameraSystem.
type CameraSystem struct {
	Devices map[ports.DeviceType]*CaptureDevice

	mu sync.Mutex
	// Recorded calls for verification
	Lookups []ports.DeviceType
}

// NewCameraSystem creates a camera system offering the given devices.
func NewCameraSystem(devices ...*CaptureDevice) *CameraSystem {
	s := &CameraSystem{Devices: make(map[ports.DeviceType]*CaptureDevice)}
	for _, d := range devices {
		s.Devices[d.DeviceType] = d
	}
	return s
}

func (m *CameraSystem) DefaultDevice(deviceType ports.DeviceType, position ports.DevicePosition) (ports.CaptureDevice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups = append(m.Lookups, deviceType)
	d, ok := m.Devices[deviceType]
	if !ok {
		return nil, false
	}
	return d, true
}

var _ ports.CameraSystem = (*CameraSystem)(nil)

// CaptureDevice is a mock camera whose frames are pushed by the test with Emit.
type CaptureDevice struct {
	DeviceID   string
	DeviceType ports.DeviceType

	// StreamErr, when set, makes Stream fail immediately.
	StreamErr error

	frames chan emission

	mu      sync.Mutex
	Configs []ports.StreamConfig
	active  int
}

type emission struct {
	frame pipeline.Frame
	done  chan struct{}
}

// NewCaptureDevice creates a mock device.
func NewCaptureDevice(id string, deviceType ports.DeviceType) *CaptureDevice {
	return &CaptureDevice{
		DeviceID:   id,
		DeviceType: deviceType,
		frames:     make(chan emission),
	}
}

func (m *CaptureDevice) ID() string             { return m.DeviceID }
func (m *CaptureDevice) Type() ports.DeviceType { return m.DeviceType }

func (m *CaptureDevice) Stream(ctx context.Context, cfg ports.StreamConfig, deliver func(pipeline.Frame)) error {
	m.mu.Lock()
	m.Configs = append(m.Configs, cfg)
	m.active++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if m.StreamErr != nil {
		return m.StreamErr
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-m.frames:
			deliver(e.frame)
			if e.frame.Buffer != nil {
				e.frame.Buffer.Release()
			}
			close(e.done)
		}
	}
}

// Emit hands frame to the running stream and waits until it was delivered.
// Ownership of the frame buffer passes to the device. Emit returns false if no
// stream picked the frame up within a second.
func (m *CaptureDevice) Emit(frame pipeline.Frame) bool {
	e := emission{frame: frame, done: make(chan struct{})}
	select {
	case m.frames <- e:
	case <-time.After(time.Second):
		return false
	}
	<-e.done
	return true
}

// Streaming reports whether a Stream call is running.
func (m *CaptureDevice) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active > 0
}

// LastConfig returns the config of the most recent Stream call.
func (m *CaptureDevice) LastConfig() (ports.StreamConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Configs) == 0 {
		return ports.StreamConfig{}, false
	}
	return m.Configs[len(m.Configs)-1], true
}

var _ ports.CaptureDevice = (*CaptureDevice)(nil)

// NewFrame builds a frame over a fresh BGRA buffer for tests.
func NewFrame(width, height int, seq uint64, ts time.Duration) pipeline.Frame {
	buf, err := pipeline.NewPixelBuffer(pipeline.PixelFormatBGRA32, width, height)
	if err != nil {
		panic(err)
	}
	return pipeline.Frame{Buffer: buf, Timestamp: ts, Sequence: seq}
}
